// Package strategymem remembers which fix strategies worked on which issues.
//
// Every fix attempt is appended to a JSONL log together with an embedding of
// the issue signature. An in-memory chromem index is rebuilt from the log on
// open and serves kind-filtered cosine similarity queries, so past attempts
// on similar issues can steer agent and strategy selection for new ones.
package strategymem
