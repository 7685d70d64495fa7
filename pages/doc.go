// Package pages walks a document's page tree into a flat, ordered
// list of pages.
//
// The walk is iterative over an explicit work list, with a visited
// set keyed by object number. A node that appears twice (a malformed
// or hostile tree whose Kids point back at an ancestor) is pruned at
// the second visit, a cycle flag is raised, and traversal continues
// with the remaining siblings. Inheritable page attributes like
// Resources and MediaBox accumulate down the tree and bind at each
// leaf.
package pages
