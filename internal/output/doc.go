// Package output post-processes objects before the CLI prints them.
//
// Secret values are replaced with RedactedValue and verbose bookkeeping
// fields such as metadata.managedFields are dropped. Both steps work on
// copies, so the decoded object is never modified.
//
//	p := output.DefaultProcessor()
//	printable := p.Process("Secret", obj.Object)
package output
