// Package toolcall turns model output into file actions and runs them.
//
// Models request actions with inline tags:
//
//	<read path="src/a.go:10-20"/>
//	<write path="notes.md">...</write>
//	<replace path="src/a.go">
//	<<<<<<< SEARCH
//	old
//	=======
//	new
//	>>>>>>> REPLACE
//	</replace>
//
// Parse extracts Calls and drops any whose path could leave the working
// directory. Executor.Dispatch validates the path again with Validate and
// then reads, writes or patches. Replace payloads go through ApplyPatch,
// which writes the file once or not at all.
package toolcall
