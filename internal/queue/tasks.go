package queue

const TypeOCRProcess = "ocr:process"

type OCRProcessPayload struct {
	JobID string `json:"job_id"`
}
