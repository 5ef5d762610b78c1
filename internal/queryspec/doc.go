// Package queryspec defines the compiled query specification: the output of
// the compiler and the input of every execution backend.
//
// A QuerySpec has four parts:
//
//   - Where: AND-combined per-field operator maps for the default resource
//     plus the single, flat disjunction list (OR entries keyed by
//     join-qualified field references such as "$posts.title$")
//   - Include: the inclusion forest; sibling relation names are unique
//   - Order: sort terms in request order
//   - Limit / Offset: optional pagination bounds
//
// JSON encoding follows the contract of the downstream engine:
//
//	{
//	  "where": {"age": {"gt": "18"}, "$or": [{"$users.email$": {"like": "%gmail.com%"}}]},
//	  "include": [{"association": "posts", "required": true}],
//	  "order": [["createdAt", "desc"]],
//	  "limit": 10
//	}
//
// Values are immutable once returned by the compiler; callers that need to
// modify a spec should copy it.
package queryspec
