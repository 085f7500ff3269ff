// Package consensus runs multi-agent votes. A request resolves the moment
// one option's vote fraction over the full eligible voter set reaches the
// quorum threshold, or expires at its deadline. Measuring against the full
// set rather than votes cast avoids premature resolution while only a
// minority has voted.
package consensus
