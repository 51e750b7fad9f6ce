package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"visatrack/internal/ai"
	"visatrack/internal/api"
	"visatrack/internal/documents"
	"visatrack/internal/extract"
	"visatrack/internal/shared/storage/object"
)

type fakeRepo struct {
	doc      documents.Document
	getErr   error
	stages   []string
	result   *documents.Result
	resultID string
	setErr   error
}

func (f *fakeRepo) Get(ctx context.Context, documentID string) (documents.Document, error) {
	if f.getErr != nil {
		return documents.Document{}, f.getErr
	}
	if documentID != f.doc.ID {
		return documents.Document{}, documents.ErrNotFound
	}
	return f.doc, nil
}

func (f *fakeRepo) SetStage(ctx context.Context, documentID, stage string) error {
	f.stages = append(f.stages, stage)
	return nil
}

func (f *fakeRepo) SetResult(ctx context.Context, documentID string, res documents.Result) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.resultID = documentID
	f.result = &res
	return nil
}

func (f *fakeRepo) Create(ctx context.Context, doc documents.Document) error {
	return errors.New("not implemented")
}

func (f *fakeRepo) GetByID(ctx context.Context, userID, documentID string) (documents.Document, error) {
	return documents.Document{}, errors.New("not implemented")
}

func (f *fakeRepo) GetByStorageKey(ctx context.Context, storageKey string) (documents.Document, error) {
	return documents.Document{}, errors.New("not implemented")
}

func (f *fakeRepo) ListByUser(ctx context.Context, userID string, limit int) ([]documents.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRepo) MarkReceived(ctx context.Context, documentID string, sizeBytes int64) error {
	return errors.New("not implemented")
}

func (f *fakeRepo) SetVerified(ctx context.Context, userID, documentID string, extracted json.RawMessage) error {
	return errors.New("not implemented")
}

func (f *fakeRepo) Delete(ctx context.Context, userID, documentID string) error {
	return errors.New("not implemented")
}

var _ documents.Repo = (*fakeRepo)(nil)

type fakeStore struct {
	objects map[string][]byte
}

func (f *fakeStore) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	data, ok := f.objects[storageKey]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Save(ctx context.Context, userId string, fileName string, r io.Reader) (string, int64, string, error) {
	return "", 0, "", errors.New("not implemented")
}

func (f *fakeStore) SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeStore) Delete(ctx context.Context, storageKey string) error {
	return errors.New("not implemented")
}

var _ object.ObjectStore = (*fakeStore)(nil)

type scriptedAI struct {
	answer string
	err    error
	reqs   []ai.Request
}

func (s *scriptedAI) Generate(ctx context.Context, req ai.Request) (string, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

var _ ai.Client = (*scriptedAI)(nil)

const pdfText = "Jane Doe SEVIS N1234567890 program end date 2027-05-15 Northeastern University Master of Science in Computer Science"

// buildPDF assembles a minimal single-page PDF carrying one text object,
// with xref offsets computed from the buffer as it grows.
func buildPDF(t *testing.T, text string) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)
	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>")
	writeObj(4, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	writeObj(5, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	xrefAt := buf.Len()
	buf.WriteString("xref\n0 6\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefAt)
	return buf.Bytes()
}

func testDoc() documents.Document {
	return documents.Document{
		ID:              "doc-1",
		UserID:          "user-1",
		DocumentType:    "i20",
		FileName:        "i20.pdf",
		StorageKey:      "user-1/doc-1/i20.pdf",
		Status:          api.StatusProcessing,
		ProcessingStage: api.StageTextExtraction,
	}
}

func answerWith(t *testing.T, overrides map[string]api.ExtractedField) string {
	t.Helper()
	fields := map[string]api.ExtractedField{
		"full_name":        {Value: "Jane Doe", Confidence: 0.97},
		"sevis_id":         {Value: "N1234567890", Confidence: 0.95},
		"program_end_date": {Value: "2027-05-15", Confidence: 0.93},
		"school_name":      {Value: "Northeastern University", Confidence: 0.96},
		"degree_level":     {Value: "Master of Science in Computer Science", Confidence: 0.91},
	}
	for name, field := range overrides {
		fields[name] = field
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal answer: %v", err)
	}
	return string(raw)
}

func newProcessor(repo *fakeRepo, store *fakeStore, client ai.Client) *Processor {
	p := New(repo, store, client)
	p.Now = func() time.Time {
		return time.Date(2026, time.August, 22, 12, 0, 0, 0, time.UTC)
	}
	return p
}

func TestProcessCompletesCleanExtraction(t *testing.T) {
	repo := &fakeRepo{doc: testDoc()}
	store := &fakeStore{objects: map[string][]byte{
		"user-1/doc-1/i20.pdf": buildPDF(t, pdfText),
	}}
	client := &scriptedAI{answer: answerWith(t, nil)}
	p := newProcessor(repo, store, client)

	if err := p.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if repo.result == nil {
		t.Fatal("expected a recorded result")
	}
	if repo.result.Status != api.StatusCompleted {
		t.Fatalf("status = %s, want completed", repo.result.Status)
	}
	if repo.result.Stage != api.StageComplete {
		t.Fatalf("stage = %s, want complete", repo.result.Stage)
	}
	if repo.result.ErrorMessage != "" {
		t.Fatalf("unexpected error message %q", repo.result.ErrorMessage)
	}
	if repo.result.ValidationErrors != nil {
		t.Fatalf("unexpected validation errors: %s", repo.result.ValidationErrors)
	}
	if !repo.result.ProcessedAt.Equal(p.Now()) {
		t.Fatalf("processed_at = %v", repo.result.ProcessedAt)
	}

	var data api.ExtractedData
	if err := json.Unmarshal(repo.result.ExtractedData, &data); err != nil {
		t.Fatalf("decode extracted data: %v", err)
	}
	if !data.OPTEligible {
		t.Fatal("expected opt_eligible for a future program end date")
	}
	if data.Timeline == nil || data.Timeline.ProgramEndDate != "2027-05-15" {
		t.Fatalf("timeline = %+v", data.Timeline)
	}

	if len(client.reqs) != 1 {
		t.Fatalf("generate called %d times, want 1", len(client.reqs))
	}
	req := client.reqs[0]
	if len(req.Parts) != 1 {
		t.Fatalf("text path sends one part, got %d", len(req.Parts))
	}
	if !strings.Contains(req.Text(), "N1234567890") {
		t.Fatal("prompt does not carry the document text")
	}
	if len(repo.stages) != 2 || repo.stages[0] != api.StageAIStructuring || repo.stages[1] != api.StageValidation {
		t.Fatalf("stages = %v", repo.stages)
	}
}

func TestProcessRoutesWarningsToVerification(t *testing.T) {
	repo := &fakeRepo{doc: testDoc()}
	store := &fakeStore{objects: map[string][]byte{
		"user-1/doc-1/i20.pdf": buildPDF(t, pdfText),
	}}
	client := &scriptedAI{answer: answerWith(t, map[string]api.ExtractedField{
		"sevis_id": {Value: "N1234567890", Confidence: 0.6},
	})}
	p := newProcessor(repo, store, client)

	if err := p.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if repo.result.Status != api.StatusNeedsVerification {
		t.Fatalf("status = %s, want needs_verification", repo.result.Status)
	}
	if repo.result.Stage != api.StageValidation {
		t.Fatalf("stage = %s, want validation", repo.result.Stage)
	}

	var findings []api.ValidationError
	if err := json.Unmarshal(repo.result.ValidationErrors, &findings); err != nil {
		t.Fatalf("decode findings: %v", err)
	}
	if len(findings) != 1 || findings[0].Field != "sevis_id" || findings[0].Severity != api.SeverityWarning {
		t.Fatalf("findings = %+v", findings)
	}
	if !strings.Contains(findings[0].Message, "Low confidence (60%)") {
		t.Fatalf("message = %q", findings[0].Message)
	}

	var data api.ExtractedData
	if err := json.Unmarshal(repo.result.ExtractedData, &data); err != nil {
		t.Fatalf("decode extracted data: %v", err)
	}
	if data.Timeline != nil {
		t.Fatal("timeline is only attached once data is trusted")
	}
}

func TestProcessRoutesCriticalToFailed(t *testing.T) {
	repo := &fakeRepo{doc: testDoc()}
	store := &fakeStore{objects: map[string][]byte{
		"user-1/doc-1/i20.pdf": buildPDF(t, pdfText),
	}}
	client := &scriptedAI{answer: answerWith(t, map[string]api.ExtractedField{
		"sevis_id": {Value: "12345", Confidence: 0.95},
	})}
	p := newProcessor(repo, store, client)

	if err := p.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if repo.result.Status != api.StatusFailed {
		t.Fatalf("status = %s, want failed", repo.result.Status)
	}
	if repo.result.Stage != api.StageValidation {
		t.Fatalf("stage = %s, want validation", repo.result.Stage)
	}
	if repo.result.ErrorMessage != "Critical fields missing or invalid: sevis_id" {
		t.Fatalf("error message = %q", repo.result.ErrorMessage)
	}
	if repo.result.ExtractedData != nil {
		t.Fatal("failed runs must not persist extracted data")
	}
	if repo.result.ValidationErrors == nil {
		t.Fatal("expected validation errors to be recorded")
	}
}

func TestProcessNormalizesMissingFields(t *testing.T) {
	repo := &fakeRepo{doc: testDoc()}
	store := &fakeStore{objects: map[string][]byte{
		"user-1/doc-1/i20.pdf": buildPDF(t, pdfText),
	}}
	client := &scriptedAI{answer: `{"full_name": {"value": "Jane Doe", "confidence": 0.9}}`}
	p := newProcessor(repo, store, client)

	if err := p.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if repo.result.Status != api.StatusFailed {
		t.Fatalf("status = %s, want failed", repo.result.Status)
	}
	want := "Critical fields missing or invalid: sevis_id, program_end_date, school_name"
	if repo.result.ErrorMessage != want {
		t.Fatalf("error message = %q", repo.result.ErrorMessage)
	}
}

func TestProcessSendsImagesToVisionModel(t *testing.T) {
	doc := testDoc()
	doc.DocumentType = "ead"
	doc.FileName = "ead.jpg"
	doc.StorageKey = "user-1/doc-1/ead.jpg"
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02, 0x03}

	repo := &fakeRepo{doc: doc}
	store := &fakeStore{objects: map[string][]byte{doc.StorageKey: jpeg}}
	client := &scriptedAI{answer: answerWith(t, nil)}
	p := newProcessor(repo, store, client)

	if err := p.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if repo.result.Status != api.StatusCompleted {
		t.Fatalf("status = %s, want completed", repo.result.Status)
	}

	req := client.reqs[0]
	if len(req.Parts) != 2 {
		t.Fatalf("vision path sends two parts, got %d", len(req.Parts))
	}
	if req.Parts[1].MIMEType != extract.MimeJPEG {
		t.Fatalf("inline part mime = %q", req.Parts[1].MIMEType)
	}
	if !bytes.Equal(req.Parts[1].Data, jpeg) {
		t.Fatal("inline part does not carry the original bytes")
	}
	if !strings.Contains(req.Parts[0].Text, "EAD card") {
		t.Fatalf("prompt = %q", req.Parts[0].Text)
	}
}

func TestProcessScannedPDFFallsBackToVision(t *testing.T) {
	repo := &fakeRepo{doc: testDoc()}
	store := &fakeStore{objects: map[string][]byte{
		"user-1/doc-1/i20.pdf": []byte("%PDF-1.4 scanned page with no text layer"),
	}}
	client := &scriptedAI{answer: answerWith(t, nil)}
	p := newProcessor(repo, store, client)

	if err := p.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	req := client.reqs[0]
	if len(req.Parts) != 2 {
		t.Fatalf("scanned pdf goes to the vision model, got %d parts", len(req.Parts))
	}
	if req.Parts[1].MIMEType != extract.MimePDF {
		t.Fatalf("inline part mime = %q", req.Parts[1].MIMEType)
	}
}

func TestProcessAIFailureRecordsFailedStatus(t *testing.T) {
	repo := &fakeRepo{doc: testDoc()}
	store := &fakeStore{objects: map[string][]byte{
		"user-1/doc-1/i20.pdf": buildPDF(t, pdfText),
	}}
	client := &scriptedAI{err: errors.New("model unavailable")}
	p := newProcessor(repo, store, client)

	if err := p.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("pipeline failures are recorded, not returned: %v", err)
	}
	if repo.result.Status != api.StatusFailed {
		t.Fatalf("status = %s, want failed", repo.result.Status)
	}
	if repo.result.Stage != api.StageAIStructuring {
		t.Fatalf("stage = %s, want ai_structuring", repo.result.Stage)
	}
	if repo.result.ErrorMessage != "AI processing failed. Please try again or contact support." {
		t.Fatalf("error message = %q", repo.result.ErrorMessage)
	}
}

func TestProcessUnparseableAnswerFails(t *testing.T) {
	repo := &fakeRepo{doc: testDoc()}
	store := &fakeStore{objects: map[string][]byte{
		"user-1/doc-1/i20.pdf": buildPDF(t, pdfText),
	}}
	client := &scriptedAI{answer: "I could not find any fields."}
	p := newProcessor(repo, store, client)

	if err := p.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if repo.result.Status != api.StatusFailed {
		t.Fatalf("status = %s, want failed", repo.result.Status)
	}
	if repo.result.ErrorMessage != "AI response could not be parsed. Please try again." {
		t.Fatalf("error message = %q", repo.result.ErrorMessage)
	}
}

func TestProcessMissingObjectFails(t *testing.T) {
	repo := &fakeRepo{doc: testDoc()}
	store := &fakeStore{objects: map[string][]byte{}}
	client := &scriptedAI{answer: answerWith(t, nil)}
	p := newProcessor(repo, store, client)

	if err := p.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if repo.result.Status != api.StatusFailed {
		t.Fatalf("status = %s, want failed", repo.result.Status)
	}
	if repo.result.Stage != api.StageTextExtraction {
		t.Fatalf("stage = %s, want text_extraction", repo.result.Stage)
	}
	if repo.result.ErrorMessage != "Document not found or cannot be accessed. Please try uploading again." {
		t.Fatalf("error message = %q", repo.result.ErrorMessage)
	}
	if len(client.reqs) != 0 {
		t.Fatal("model must not be called when the object is unreadable")
	}
}

func TestProcessUnsupportedFileTypeFails(t *testing.T) {
	doc := testDoc()
	doc.FileName = "notes.txt"
	doc.StorageKey = "user-1/doc-1/notes.txt"

	repo := &fakeRepo{doc: doc}
	store := &fakeStore{objects: map[string][]byte{doc.StorageKey: []byte("hello")}}
	client := &scriptedAI{answer: answerWith(t, nil)}
	p := newProcessor(repo, store, client)

	if err := p.Process(context.Background(), "doc-1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if repo.result.Status != api.StatusFailed {
		t.Fatalf("status = %s, want failed", repo.result.Status)
	}
	if repo.result.ErrorMessage != "Document type not supported. Please upload a PDF or image file." {
		t.Fatalf("error message = %q", repo.result.ErrorMessage)
	}
}

func TestProcessUnknownDocumentReturnsError(t *testing.T) {
	repo := &fakeRepo{doc: testDoc()}
	store := &fakeStore{objects: map[string][]byte{}}
	p := newProcessor(repo, store, &scriptedAI{})

	err := p.Process(context.Background(), "ghost")
	if !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if repo.result != nil {
		t.Fatal("no result should be recorded for an unknown document")
	}
}

func TestProcessResultWriteFailureSurfaces(t *testing.T) {
	repo := &fakeRepo{doc: testDoc(), setErr: errors.New("db down")}
	store := &fakeStore{objects: map[string][]byte{
		"user-1/doc-1/i20.pdf": buildPDF(t, pdfText),
	}}
	client := &scriptedAI{answer: answerWith(t, nil)}
	p := newProcessor(repo, store, client)

	if err := p.Process(context.Background(), "doc-1"); err == nil {
		t.Fatal("expected the persistence failure to surface")
	}
}
