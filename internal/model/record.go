package model

import "time"

// RecordStatus represents the processing state of a candidate record.
type RecordStatus string

const (
	RecordStatusUnprocessed RecordStatus = "unprocessed"
	RecordStatusProcessed   RecordStatus = "processed"
)

// CandidateRecord is a raw submitted facility observation awaiting
// resolution against the canonical registry. Never deleted, only superseded:
// reprocessing fully replaces Matches, the confirm path touches one entry.
type CandidateRecord struct {
	ID          string       `json:"id"`
	RawName     string       `json:"raw_name"`
	RawAddress  string       `json:"raw_address"`
	RawCountry  string       `json:"raw_country"`
	UploaderID  string       `json:"uploader_id"`
	Status      RecordStatus `json:"status"`
	Matches     []Match      `json:"matches"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Match is one ranked candidate match produced by the scorer. Confirmed is
// nil until an operator decides; true/false afterwards.
type Match struct {
	MatchID       string  `json:"match_id"`
	Name          string  `json:"name"`
	NameID        string  `json:"name_id"`
	AddressID     string  `json:"address_id"`
	Address       string  `json:"address"`
	NameScore     float64 `json:"name_score"`
	AddressScore  float64 `json:"address_score"`
	CombinedScore float64 `json:"combined_score"`
	Confirmed     *bool   `json:"confirmed,omitempty"`
}

// FindMatch returns the match with the given id, or nil.
func (r *CandidateRecord) FindMatch(matchID string) *Match {
	for i := range r.Matches {
		if r.Matches[i].MatchID == matchID {
			return &r.Matches[i]
		}
	}
	return nil
}
