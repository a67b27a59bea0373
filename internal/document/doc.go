// Package document extracts plain text from uploaded files for providers
// that cannot read documents natively.
package document
