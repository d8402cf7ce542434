// ABOUTME: Reset policies deciding what the transcript becomes after a successful reset
// ABOUTME: Default keeps one acknowledgement entry; the legacy draft-echo mode stays selectable

package dashboard

import "fmt"

// ResetPolicy decides the transcript after a successful reset.
type ResetPolicy string

const (
	// ResetReplaceWithAck leaves a single entry holding the service
	// acknowledgement with an empty query.
	ResetReplaceWithAck ResetPolicy = "replace_with_ack"

	// ResetReplaceWithDraft leaves a single entry whose query is the unsent
	// draft at call time. Matches the legacy web dashboard.
	ResetReplaceWithDraft ResetPolicy = "replace_with_draft"

	// ResetClear empties the transcript and drops the acknowledgement.
	ResetClear ResetPolicy = "clear"
)

// DefaultResetPolicy is used when none is configured.
const DefaultResetPolicy = ResetReplaceWithAck

// ParseResetPolicy validates a configured policy name. Empty selects the default.
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch p := ResetPolicy(s); p {
	case "":
		return DefaultResetPolicy, nil
	case ResetReplaceWithAck, ResetReplaceWithDraft, ResetClear:
		return p, nil
	default:
		return "", fmt.Errorf("unknown reset policy %q (want %s, %s or %s)",
			s, ResetReplaceWithAck, ResetReplaceWithDraft, ResetClear)
	}
}

// Apply returns the new transcript for a reset acknowledged with ack.
// draft is the draft input captured when the reset began.
func (p ResetPolicy) Apply(draft, ack string) []Exchange {
	switch p {
	case ResetClear:
		return nil
	case ResetReplaceWithDraft:
		return []Exchange{{Query: draft, Message: ack}}
	default:
		return []Exchange{{Query: "", Message: ack}}
	}
}
