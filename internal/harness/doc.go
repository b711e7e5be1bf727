// Package harness runs query compilation scenarios against a seeded store.
//
// A scenario seeds projects, environments, issues and releases into a
// fresh in-memory database, compiles a search sequence and checks the
// rendered SQL.
//
// # Scenario Format
//
//	name: semver_flip
//	description: "Large semver result sets flip to NOT IN"
//	max_search_releases: 3
//	projects: [backend]
//	releases:
//	  - version: app@1.0.0
//	    projects: [backend]
//	query:
//	  - term: {key: release.version, op: ">", value: 1.0.0}
//	expect:
//	  where: release NOT IN (?)
//	  where_args: [app@1.0.0]
//	assertions:
//	  - type: restricts_projects
//	    names: []
//
// # Assertion Types
//
//   - where_contains: the where SQL contains a fragment
//   - having_contains: the having SQL contains a fragment
//   - restricts_projects: the project side list names exactly these slugs
//   - restricts_issues: the group side list names exactly these short ids
//
// # Deterministic Testing
//
// Store ids are assigned in declaration order and releases are stamped by
// a step clock, so the same scenario always compiles to the same SQL.
// Golden files hold the canonical JSON snapshot of the compiled output.
package harness
