package analyzer

import (
	"math"
	"slices"
	"sort"

	"github.com/duelscope/recorder/internal/correlator"
	"github.com/duelscope/recorder/pkg/core"
	"gonum.org/v1/gonum/stat"
)

// Summarize aggregates analyzed bullets per shooter, ordered by shooter name.
func Summarize(records []core.GuessFactorRecord) []core.RoundSummary {
	byShooter := make(map[string][]core.GuessFactorRecord)
	for _, r := range records {
		byShooter[r.Shooter] = append(byShooter[r.Shooter], r)
	}

	names := make([]string, 0, len(byShooter))
	for name := range byShooter {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]core.RoundSummary, 0, len(names))
	for _, name := range names {
		recs := byShooter[name]
		ownerGF := make([]float64, len(recs))
		victimGF := make([]float64, len(recs))
		hits := 0
		for i, r := range recs {
			ownerGF[i] = r.OwnerFireGF
			victimGF[i] = r.VictimEscapeGF
			if r.Hit {
				hits++
			}
		}

		s := core.RoundSummary{
			BattleID: recs[0].BattleID,
			Round:    recs[0].Round,
			Shooter:  name,
			Shots:    len(recs),
			Hits:     hits,
			HitRate:  float64(hits) / float64(len(recs)),
		}
		s.MeanOwnerGF, s.StdDevOwnerGF = meanStdDev(ownerGF)
		s.MeanVictimGF, s.StdDevVictimGF = meanStdDev(victimGF)

		sort.Float64s(victimGF)
		s.MedianVictimGF = stat.Quantile(0.5, stat.Empirical, victimGF, nil)

		out = append(out, s)
	}
	return out
}

// meanStdDev returns the mean and sample standard deviation. A single sample has
// no spread.
func meanStdDev(x []float64) (mean, std float64) {
	if len(x) == 1 {
		return x[0], 0
	}
	mean, std = stat.MeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}

// CountOutcomes fills in per-shooter unresolved bullets and analysis failures.
// Unresolved counts bullets still flying at round end; bullets destroyed in
// flight are not counted.
// Shooters with no analyzed bullet get a summary row of their own. nameOf
// resolves participants whose records carry no robot snapshot; it may be nil.
func CountOutcomes(
	summaries []core.RoundSummary,
	records []*correlator.Record,
	failures []*AnalysisError,
	nameOf func(index int) string,
) []core.RoundSummary {
	names := make(map[int]string)
	unresolved := make(map[string]int)
	for _, rec := range records {
		name := shooterName(rec, nameOf)
		names[rec.OwnerIndex] = name
		if rec.Forced {
			unresolved[name]++
		}
	}
	failed := make(map[string]int)
	for _, f := range failures {
		failed[names[f.OwnerIndex]]++
	}

	index := make(map[string]int, len(summaries))
	for i := range summaries {
		index[summaries[i].Shooter] = i
	}
	for _, name := range sortedNames(unresolved, failed) {
		if _, ok := index[name]; !ok {
			summaries = append(summaries, core.RoundSummary{Shooter: name})
			index[name] = len(summaries) - 1
		}
	}
	for i := range summaries {
		summaries[i].Unresolved = unresolved[summaries[i].Shooter]
		summaries[i].AnalysisFailures = failed[summaries[i].Shooter]
	}
	return summaries
}

func shooterName(rec *correlator.Record, nameOf func(int) string) string {
	for _, r := range []*core.RobotSnapshot{rec.FireOwner, rec.AimOwner} {
		if r != nil && r.Name != "" {
			return r.Name
		}
	}
	if nameOf != nil {
		return nameOf(rec.OwnerIndex)
	}
	return ""
}

func sortedNames(sets ...map[string]int) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for name := range set {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
