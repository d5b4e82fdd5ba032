package forensics

import "barsentry/internal/ingest"

// CountRapidSelections counts consecutive selection pairs closer than
// th.RapidSelectionMs where both select more than th.LargeSelectionUnits
// units.
func CountRapidSelections(selections []ingest.ActionEvent, th *Thresholds) int {
	count := 0
	for i := 1; i < len(selections); i++ {
		prev, cur := selections[i-1], selections[i]
		if cur.TimestampMs-prev.TimestampMs < th.RapidSelectionMs &&
			cur.SelectedUnitCount > th.LargeSelectionUnits &&
			prev.SelectedUnitCount > th.LargeSelectionUnits {
			count++
		}
	}
	return count
}

// DetectSelection flags repeated rapid switching between large selections.
func DetectSelection(selections []ingest.ActionEvent, th *Thresholds) []Flag {
	if len(selections) < th.MinSelections {
		return nil
	}
	n := CountRapidSelections(selections, th)
	sev, ok := th.RapidSelection.Above(float64(n))
	if !ok {
		return nil
	}
	return []Flag{newFlag(KindRapidSelection, sev, float64(n), "%d rapid large selection changes", n)}
}
