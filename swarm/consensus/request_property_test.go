package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func genOptions() *rapid.Generator[[]string] {
	return rapid.Custom(func(t *rapid.T) []string {
		n := rapid.IntRange(2, 6).Draw(t, "numOptions")
		opts := make([]string, n)
		seen := make(map[string]bool, n)
		for i := range opts {
			opt := rapid.StringMatching(`[a-z]{3,12}`).
				Filter(func(s string) bool { return !seen[s] }).
				Draw(t, "option")
			seen[opt] = true
			opts[i] = opt
		}
		return opts
	})
}

func genVotes(options []string) *rapid.Generator[[]*Vote] {
	return rapid.Custom(func(t *rapid.T) []*Vote {
		n := rapid.IntRange(0, 20).Draw(t, "numVotes")
		votes := make([]*Vote, n)
		for i := range votes {
			votes[i] = &Vote{
				RequestID: "r1",
				AgentID:   rapid.StringMatching(`agent-[0-9]{1,3}`).Draw(t, "agentID"),
				Choice:    rapid.SampledFrom(options).Draw(t, "choice"),
				VotedAt:   time.Now(),
			}
		}
		return votes
	})
}

func TestPropertyTallyConservesVotes(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		options := genOptions().Draw(rt, "options")
		votes := genVotes(options).Draw(rt, "votes")

		tally := Tally(options, votes)

		// Every option has an entry, even with zero votes.
		require.Len(t, tally, len(options))
		total := 0
		for _, opt := range options {
			count, ok := tally[opt]
			require.True(rt, ok, "option %q missing from tally", opt)
			assert.GreaterOrEqual(rt, count, 0)
			total += count
		}
		assert.Equal(rt, len(votes), total, "tally must conserve the vote count")
	})
}

func TestPropertyResolveWinnerHasQuorum(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		options := genOptions().Draw(rt, "options")
		votes := genVotes(options).Draw(rt, "votes")
		eligible := rapid.IntRange(len(votes)+1, len(votes)+10).Draw(rt, "eligible")
		threshold := rapid.Float64Range(0.01, 1.0).Draw(rt, "threshold")

		tally := Tally(options, votes)
		winner, ok := Resolve(options, tally, eligible, threshold)

		if !ok {
			// No option may reach quorum when resolution reports none.
			for _, opt := range options {
				assert.Less(rt, float64(tally[opt])/float64(eligible), threshold,
					"option %q reaches quorum but Resolve reported none", opt)
			}
			return
		}

		assert.GreaterOrEqual(rt, float64(tally[winner])/float64(eligible), threshold)

		// The winner is the earliest option with quorum.
		for _, opt := range options {
			if opt == winner {
				break
			}
			assert.Less(rt, float64(tally[opt])/float64(eligible), threshold,
				"option %q precedes the winner and also has quorum", opt)
		}
	})
}

func TestPropertyResolveDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		options := genOptions().Draw(rt, "options")
		votes := genVotes(options).Draw(rt, "votes")
		eligible := rapid.IntRange(1, 30).Draw(rt, "eligible")
		threshold := rapid.Float64Range(0.01, 1.0).Draw(rt, "threshold")

		tally := Tally(options, votes)
		w1, ok1 := Resolve(options, tally, eligible, threshold)
		w2, ok2 := Resolve(options, tally, eligible, threshold)

		assert.Equal(rt, ok1, ok2)
		assert.Equal(rt, w1, w2)
	})
}
