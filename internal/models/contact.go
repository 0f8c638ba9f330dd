package models

// Event is one OCR scanning session; its batch id links to the cards scanned in it.
type Event struct {
	BatchID   string `json:"batch_id"`
	EventName string `json:"event_name"`
	Team      string `json:"team"`
	EventID   int64  `json:"event_id"`
}

// Contact is a business card row that carries an email address.
type Contact struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Company     string `json:"company"`
	Designation string `json:"designation"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
}
