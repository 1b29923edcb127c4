// Package logging provides file-based logging with rotation for ragindex.
// The CLI always writes JSON logs to ~/.ragindex/logs/, at info level by
// default and at debug level when the --debug flag is set; it does not
// write them to stderr.
package logging
