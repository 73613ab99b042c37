// Package rule determines which profile should be used, by using CEL (Common
// Expression Language) expressions.
//
// The expressions have access to file paths, content, and directory
// information, allowing for flexible matching logic.
package rule
