package domain

// ExtractedItem is one appeal mention pulled out of an agenda PDF by the
// extraction backend. Field names mirror the JSON schema in the prompt; null
// JSON values decode to zero values.
type ExtractedItem struct {
	ItemNumber         *int   `json:"item_number"`
	PageNumber         *int   `json:"page_number"`
	HearingType        string `json:"hearing_type"`
	ActionTaken        string `json:"action_taken"`
	AppealStatus       string `json:"appeal_status"`
	Decision           string `json:"decision"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	AppealDescription  string `json:"appeal_description"`
	ProjectName        string `json:"project_name"`
	ProjectAddress     string `json:"project_address"`
	APN                string `json:"apn"`
	AppellantName      string `json:"appellant_name"`
	GroundsCategory    string `json:"grounds_category"`
	GroundsDescription string `json:"grounds_description"`
	ReferenceNumber    string `json:"reference_number"`
}
