// Command pipelinectl drives the batched, recoverable pipeline orchestrator
// described by this repository: it pulls items from a Source, submits them
// to a ProcessingDriver, and reconciles results through an Exporter, with
// every step persisted to a Status Ledger so a crash can resume precisely.
package main

import "github.com/dbsmedya/pipelinectl/cmd/pipelinectl/cmd"

func main() {
	cmd.Execute()
}
