package store

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

// NewReceipt describes a stored submission. The digest covers the owner,
// the questionnaire and every answer payload, independent of response
// order and submission time.
func NewReceipt(userID string, questionnaireID int, responses []questionnaire.Response, at time.Time) *questionnaire.Receipt {
	return &questionnaire.Receipt{
		ID:              uuid.NewString(),
		UserID:          userID,
		QuestionnaireID: questionnaireID,
		Count:           len(responses),
		Digest:          Digest(userID, questionnaireID, responses),
		SubmittedAt:     at,
	}
}

// digestRecord is the canonical form hashed by Digest.
type digestRecord struct {
	QuestionID int                    `json:"q"`
	Type       questionnaire.Category `json:"t"`
	Single     *int                   `json:"s,omitempty"`
	Multi      []int                  `json:"m,omitempty"`
	Text       *string                `json:"x,omitempty"`
}

// Digest returns the hex BLAKE3 hash of a submission.
func Digest(userID string, questionnaireID int, responses []questionnaire.Response) string {
	recs := make([]digestRecord, len(responses))
	for i, r := range responses {
		multi := append([]int(nil), r.MultiOptionIDs...)
		sort.Ints(multi)
		recs[i] = digestRecord{
			QuestionID: r.QuestionID,
			Type:       r.Type,
			Single:     r.SingleOptionID,
			Multi:      multi,
			Text:       r.ShortAnswer,
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].QuestionID < recs[j].QuestionID })

	h := blake3.New()
	_, _ = h.Write([]byte(userID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.Itoa(questionnaireID)))
	_, _ = h.Write([]byte{0})
	// Marshalling plain structs of ints and strings cannot fail.
	body, _ := json.Marshal(recs)
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
