package backend

import "time"

// CallType is the kind of staff attention a table asks for.
type CallType string

const (
	GameMasterCall CallType = "GAMEMASTERCALL"
	OrderCall      CallType = "ORDERCALL"
	TableCall      CallType = "TABLECALL"
)

// CallTypes lists the call types patrons can raise from a table page.
var CallTypes = []CallType{GameMasterCall, OrderCall}

func (t CallType) Valid() bool {
	switch t {
	case GameMasterCall, OrderCall, TableCall:
		return true
	}
	return false
}

const (
	HourFormat = "15:04"
	DateFormat = "2006-01-02"
)

// Hour formats t the way the backend expects call timestamps.
func Hour(t time.Time) string {
	return t.Format(HourFormat)
}

// Date formats t as a call date.
func Date(t time.Time) string {
	return t.Format(DateFormat)
}

type ButtonCall struct {
	ID              string   `json:"_id"`
	TableName       string   `json:"tableName"`
	Location        int      `json:"location"`
	LocationName    string   `json:"locationName,omitempty"`
	Date            string   `json:"date"`
	Type            CallType `json:"type"`
	StartHour       string   `json:"startHour"`
	FinishHour      string   `json:"finishHour,omitempty"`
	CreatedBy       string   `json:"createdBy,omitempty"`
	CancelledBy     string   `json:"cancelledBy,omitempty"`
	CancelledByName string   `json:"cancelledByName,omitempty"`
	Duration        int      `json:"duration,omitempty"`
	CallCount       int      `json:"callCount"`
}

// Open reports whether the call has not been closed yet.
func (c ButtonCall) Open() bool {
	return c.FinishHour == ""
}

// Started returns the local start time of the call. ok is false when
// date or startHour cannot be parsed.
func (c ButtonCall) Started(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateFormat+" "+HourFormat, c.Date+" "+c.StartHour, loc)
	if err != nil {
		// some backends send seconds as well
		t, err = time.ParseInLocation(DateFormat+" 15:04:05", c.Date+" "+c.StartHour, loc)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}

type CallInput struct {
	Location  int      `json:"location"`
	Type      CallType `json:"type"`
	TableName string   `json:"tableName"`
	Hour      string   `json:"hour"`
}

type CloseCallInput struct {
	Location  int      `json:"location"`
	TableName string   `json:"tableName"`
	Hour      string   `json:"hour"`
	Type      CallType `json:"type"`
}

// QueuePayload is the queue projection of one call type at one table.
// Position is 1-based and zero when the table is not queued. WaitingCount
// is the number of waiting calls of that type, the caller included.
type QueuePayload struct {
	IsQueued     bool `json:"isQueued"`
	Position     int  `json:"position,omitempty"`
	WaitingCount int  `json:"waitingCount"`
	TotalActive  int  `json:"totalActive"`
}

// QueueResponse maps call type to the queue state of that type.
type QueueResponse map[CallType]QueuePayload

type ListCallsQuery struct {
	Location int
	Date     string
	Type     string // "active" for open calls only
}

type FeedbackInput struct {
	Location   int    `json:"location"`
	TableName  string `json:"tableName"`
	StarRating int    `json:"starRating"`
	Comment    string `json:"comment"`
}

type Feedback struct {
	ID         int       `json:"_id"`
	Location   int       `json:"location"`
	TableName  string    `json:"tableName"`
	Comment    string    `json:"comment,omitempty"`
	StarRating int       `json:"starRating,omitempty"`
	Table      int       `json:"table,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
