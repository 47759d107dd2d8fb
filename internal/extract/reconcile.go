package extract

import "github.com/sells-group/mne-enrich/internal/model"

// Merge reconciles per-source fact lists into at most one fact per variable.
//
// Sources are visited in argument order, which is the priority order. The
// first fact seen for a variable seeds the result. A later fact replaces it
// only when the later year is set and either the stored year is unset or
// strictly older. Equal years keep the earlier fact. Output preserves the
// order in which variables were first seen.
func Merge(sources ...[]model.Fact) []model.Fact {
	index := make(map[model.Variable]int)
	var out []model.Fact

	for _, facts := range sources {
		for _, f := range facts {
			i, seen := index[f.Variable]
			if !seen {
				index[f.Variable] = len(out)
				out = append(out, f)
				continue
			}
			if newer(f.Year, out[i].Year) {
				out[i] = f
			}
		}
	}
	return out
}

func newer(candidate, stored *int) bool {
	if candidate == nil {
		return false
	}
	return stored == nil || *candidate > *stored
}
