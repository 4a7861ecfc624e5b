package pdfprocessor

// Page is one extracted page of a document. Number is 1-based.
type Page struct {
	Number int    `json:"page" msgpack:"page"`
	Text   string `json:"content" msgpack:"content"`
}
