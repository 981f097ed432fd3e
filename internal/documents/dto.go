package documents

// UploadResponse is the body returned by a successful upload.
type UploadResponse struct {
	Document            Document `json:"document"`
	ExtractionAttempted bool     `json:"extractionAttempted"`
	ExtractionSucceeded bool     `json:"extractionSucceeded"`
	Warning             string   `json:"warning,omitempty"`
}

func toUploadResponse(res UploadResult) UploadResponse {
	return UploadResponse{
		Document:            res.Document,
		ExtractionAttempted: res.ExtractionAttempted,
		ExtractionSucceeded: res.ExtractionSucceeded,
		Warning:             res.Warning,
	}
}

// ListResponse wraps a list or search result.
type ListResponse struct {
	Items []Document `json:"items"`
	Query string     `json:"query,omitempty"`
	// Searched is true when the query reached the minimum length and ran against extracted text.
	Searched bool `json:"searched"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// TypeOption describes a selectable document type.
type TypeOption struct {
	Value Type   `json:"value"`
	Label string `json:"label"`
}
