// Package bridge exposes a permission Session over HTTP so an out-of-process
// host can show prompts and report the answers.
//
//	GET  /v1/permissions/prompts   SSE stream of prompt events
//	POST /v1/permissions/results   deliver a prompt result (bearer JWT when configured)
//	GET  /v1/permissions/status    current grant state from the status table
//	GET  /health                   session health
//	GET  /info                     build information
//
// PromptRequester is the Requester side: each prompt a gate triggers is
// broadcast to every connected SSE client as
//
//	event: prompt
//	data: {"id":"…","permissions":["LOCATION"]}
//
// and the host answers by POSTing the same permissions with one outcome each.
package bridge
