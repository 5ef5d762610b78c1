// Package harness runs query compilation scenarios.
//
// A scenario is a YAML file naming a raw query string, the resource it is
// compiled for, and the expected result:
//
//	name: shorthand_gt
//	description: "A leading > compiles to gt"
//	resource: users
//	query: "filter[users][age]=>18&sort=-createdAt"
//	expect:
//	  where:
//	    age: { gt: "18" }
//	  order:
//	    - [createdAt, desc]
//
// Rejected queries name the error code instead:
//
//	expect:
//	  error_code: MALFORMED_INTEGER
//
// Each expectation that is present is compared exactly against the
// compiled QuerySpec's JSON form. An optional sql/args pair checks the
// rendered SQL for the scenario's dialect (sqlite by default).
//
// Every run also records the compilation in an in-memory compile log and
// replays it, so a scenario fails if compiling the same input twice gives
// a different result.
//
// Scenarios run with a fixed pass ID and a discard logger so output is
// reproducible for golden comparison.
package harness
