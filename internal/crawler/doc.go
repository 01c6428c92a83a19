// Package crawler holds the domain types, collaborator interfaces, and error
// taxonomy shared by the extractor, scheduler, ingest pipeline, and storage
// backends.
package crawler
