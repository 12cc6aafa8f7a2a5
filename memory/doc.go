// Package memory keeps rolling conversation summaries so follow-up
// questions carry their context without replaying full transcripts.
package memory
