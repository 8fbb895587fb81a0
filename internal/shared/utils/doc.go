// Package utils holds small helpers shared by the API and domain layers:
// id and nesting-depth validation, and content hashing for entity tags.
package utils
