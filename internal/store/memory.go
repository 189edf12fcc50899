package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/questionnaire"
)

type responseKey struct {
	userID          string
	questionnaireID int
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu             sync.RWMutex
	questionnaires map[int][]byte
	responses      map[responseKey][]questionnaire.Response
	receipts       []*questionnaire.Receipt
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		questionnaires: make(map[int][]byte),
		responses:      make(map[responseKey][]questionnaire.Response),
	}
}

func (m *MemoryStore) ListQuestionnaires(_ context.Context) ([]questionnaire.Questionnaire, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]questionnaire.Questionnaire, 0, len(m.questionnaires))
	for id, raw := range m.questionnaires {
		var qn questionnaire.Questionnaire
		if err := json.Unmarshal(raw, &qn); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, fmt.Sprintf("decode questionnaire %d", id), err)
		}
		out = append(out, qn)
	}
	sortQuestionnaires(out)
	return out, nil
}

func (m *MemoryStore) GetQuestionnaire(_ context.Context, id int) (*questionnaire.Questionnaire, error) {
	m.mu.RLock()
	raw, ok := m.questionnaires[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.NewQuestionnaireNotFoundError(id)
	}

	var qn questionnaire.Questionnaire
	if err := json.Unmarshal(raw, &qn); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, fmt.Sprintf("decode questionnaire %d", id), err)
	}
	return &qn, nil
}

// PutQuestionnaire stores an encoded copy so later mutation of qn by the
// caller is not observed.
func (m *MemoryStore) PutQuestionnaire(_ context.Context, qn *questionnaire.Questionnaire) error {
	if err := qn.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeQuestionnaireInvalid, "refusing to store invalid questionnaire", err)
	}
	raw, err := json.Marshal(qn)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQuery, "encode questionnaire", err)
	}

	m.mu.Lock()
	m.questionnaires[qn.ID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Responses(_ context.Context, userID string, questionnaireID int) ([]questionnaire.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.responses[responseKey{userID, questionnaireID}]
	out := make([]questionnaire.Response, len(stored))
	copy(out, stored)
	return out, nil
}

func (m *MemoryStore) SaveResponses(_ context.Context, userID string, questionnaireID int, responses []questionnaire.Response) (*questionnaire.Receipt, error) {
	at := now()
	stamped := stamp(userID, questionnaireID, responses, at)
	receipt := NewReceipt(userID, questionnaireID, stamped, at)

	m.mu.Lock()
	m.responses[responseKey{userID, questionnaireID}] = stamped
	m.receipts = append(m.receipts, receipt)
	m.mu.Unlock()

	return receipt, nil
}

// Receipts returns every receipt issued, oldest first.
func (m *MemoryStore) Receipts() []*questionnaire.Receipt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*questionnaire.Receipt(nil), m.receipts...)
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
