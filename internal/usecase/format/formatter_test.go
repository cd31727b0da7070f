package format

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
	"github.com/kailas-cloud/askdex/internal/domain/query/response"
	"github.com/kailas-cloud/askdex/internal/domain/record"
)

func makeRecords(n int) []record.Record {
	out := make([]record.Record, n)
	for i := range out {
		out[i] = record.Record{
			ID:           fmt.Sprintf("F-%d", i+1),
			Title:        fmt.Sprintf("Finding %d", i+1),
			Severity:     "High",
			Status:       "Open",
			Category:     "Retail",
			IdentifiedAt: time.Date(2024, time.January, 1+i%28, 0, 0, 0, 0, time.UTC),
		}
	}
	return out
}

func intPtr(v int) *int { return &v }

func TestFormatData_Small(t *testing.T) {
	f := New(0)
	resp := f.FormatData(makeRecords(3), response.Metadata{Kind: intent.KindSimple, Confidence: 0.9})

	if resp.Pagination != nil {
		t.Error("unexpected pagination for 3 records")
	}
	if len(resp.Records) != 3 || resp.Metadata.RecordsAnalyzed != 3 {
		t.Fatalf("records = %d, analyzed = %d", len(resp.Records), resp.Metadata.RecordsAnalyzed)
	}
	s := resp.Records[0]
	if s.Title == "" || s.Severity == "" || s.Status == "" || s.Date != "2024-01-01" {
		t.Errorf("summary missing fields: %+v", s)
	}
	if resp.Analysis != nil || resp.Metadata.TokensUsed != nil {
		t.Error("data response carries analysis or token usage")
	}
	if resp.Answer != "Found 3 findings." {
		t.Errorf("answer = %q", resp.Answer)
	}
}

func TestFormatData_Boundary(t *testing.T) {
	f := New(0)

	if resp := f.FormatData(makeRecords(50), response.Metadata{}); resp.Pagination != nil || len(resp.Records) != 50 {
		t.Errorf("50 records should not paginate: %+v", resp.Pagination)
	}

	resp := f.FormatData(makeRecords(51), response.Metadata{})
	if resp.Pagination == nil || !resp.Pagination.Paginated {
		t.Fatal("51 records should paginate")
	}
	if resp.Pagination.Total != 51 || resp.Pagination.TotalPages != 2 || len(resp.Records) != 50 {
		t.Errorf("pagination = %+v, records = %d", *resp.Pagination, len(resp.Records))
	}
}

func TestFormatDataPage(t *testing.T) {
	f := New(50)
	records := makeRecords(120)

	tests := []struct {
		page      int
		wantPage  int
		wantCount int
		wantFirst string
	}{
		{1, 1, 50, "F-1"},
		{2, 2, 50, "F-51"},
		{3, 3, 20, "F-101"},
		{9, 3, 20, "F-101"},
		{0, 1, 50, "F-1"},
	}
	for _, tc := range tests {
		resp := f.FormatDataPage(records, tc.page, response.Metadata{})
		if resp.Pagination.Page != tc.wantPage || len(resp.Records) != tc.wantCount || resp.Records[0].ID != tc.wantFirst {
			t.Errorf("page %d: got page %d, %d records starting %s",
				tc.page, resp.Pagination.Page, len(resp.Records), resp.Records[0].ID)
		}
		if resp.Metadata.RecordsAnalyzed != 120 {
			t.Errorf("records analyzed = %d", resp.Metadata.RecordsAnalyzed)
		}
	}
	if got := f.FormatDataPage(records, 3, response.Metadata{}).Answer; got != "Found 120 findings; showing 101-120 (page 3 of 3)." {
		t.Errorf("answer = %q", got)
	}
}

func TestFormatData_Empty(t *testing.T) {
	resp := New(0).FormatData(nil, response.Metadata{})
	if resp.Answer != NoRecordsAnswer || len(resp.Records) != 0 {
		t.Errorf("unexpected empty response %+v", resp)
	}
}

func TestFormatAnalysis_References(t *testing.T) {
	sources := makeRecords(4)
	resp := New(0).FormatAnalysis("Fix the doors.", sources, response.Metadata{Kind: intent.KindComplex, TokensUsed: intPtr(321)})

	if resp.Analysis == nil || !resp.Analysis.Performed {
		t.Fatal("analysis section missing")
	}
	if len(resp.Analysis.References) != 4 {
		t.Fatalf("references = %d, want 4", len(resp.Analysis.References))
	}
	for i, ref := range resp.Analysis.References {
		if ref.ID != sources[i].ID || ref.Title != sources[i].Title || ref.Date == "" {
			t.Errorf("reference %d = %+v", i, ref)
		}
	}
	if resp.Metadata.TokensUsed == nil || *resp.Metadata.TokensUsed != 321 {
		t.Errorf("tokens = %v", resp.Metadata.TokensUsed)
	}
	if resp.Records != nil {
		t.Error("analysis-only response has a data section")
	}
}

func TestFormatAnalysis_TokensAlwaysPresent(t *testing.T) {
	resp := New(0).FormatAnalysis("x", makeRecords(1), response.Metadata{})
	if resp.Metadata.TokensUsed == nil || *resp.Metadata.TokensUsed != 0 {
		t.Errorf("tokens = %v, want 0", resp.Metadata.TokensUsed)
	}
}

func TestFormatCombined_SeparateSections(t *testing.T) {
	records := makeRecords(5)
	resp := New(0).FormatCombinedFrom(records, records[:2], "Two stand out.", response.Metadata{
		Kind:       intent.KindHybrid,
		TokensUsed: intPtr(50),
	})

	if len(resp.Records) != 5 {
		t.Errorf("data section = %d records", len(resp.Records))
	}
	if resp.Analysis == nil || resp.Analysis.Text != "Two stand out." || len(resp.Analysis.References) != 2 {
		t.Errorf("analysis = %+v", resp.Analysis)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"records", "analysis", "metadata"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("combined JSON missing %q", key)
		}
	}
}

func TestFormatCombinedPage(t *testing.T) {
	records := makeRecords(70)
	resp := New(50).FormatCombinedPage(records, records[:5], 2, "Five stand out.", response.Metadata{Kind: intent.KindHybrid})

	if resp.Pagination == nil || resp.Pagination.Page != 2 || len(resp.Records) != 20 || resp.Records[0].ID != "F-51" {
		t.Fatalf("pagination = %+v, records = %d", resp.Pagination, len(resp.Records))
	}
	if len(resp.Analysis.References) != 5 || resp.Metadata.RecordsAnalyzed != 70 {
		t.Errorf("references = %d, analyzed = %d", len(resp.Analysis.References), resp.Metadata.RecordsAnalyzed)
	}
}

func TestFormatCombined_EmptyRecordsSkipsAnalysis(t *testing.T) {
	resp := New(0).FormatCombined(nil, "should be ignored", response.Metadata{
		Kind:       intent.KindHybrid,
		TokensUsed: intPtr(10),
	})

	if resp.Analysis == nil || resp.Analysis.Performed {
		t.Fatalf("analysis = %+v, want performed=false", resp.Analysis)
	}
	if !strings.Contains(resp.Analysis.Text, "no analysis was performed") {
		t.Errorf("analysis text = %q", resp.Analysis.Text)
	}
	if resp.Metadata.TokensUsed != nil {
		t.Error("tokens_used present for skipped analysis")
	}

	data, _ := json.Marshal(resp)
	if strings.Contains(string(data), "tokens_used") {
		t.Errorf("serialized response carries tokens_used: %s", data)
	}
}

func TestFormatModelFallback(t *testing.T) {
	resp := New(0).FormatModelFallback(makeRecords(2), "model timeout", response.Metadata{Kind: intent.KindComplex})

	if len(resp.Records) != 2 {
		t.Errorf("records = %d", len(resp.Records))
	}
	if !strings.Contains(resp.Answer, "model timeout") || len(resp.Metadata.Warnings) != 1 {
		t.Errorf("answer = %q, warnings = %v", resp.Answer, resp.Metadata.Warnings)
	}
	if resp.Metadata.TokensUsed == nil {
		t.Error("model-backed kind must report token usage")
	}
}

func TestFormatNoCandidates(t *testing.T) {
	resp := New(0).FormatNoCandidates(response.Metadata{Kind: intent.KindComplex})
	if resp.Analysis != nil || resp.Metadata.TokensUsed != nil || resp.Answer != NoCandidatesAnswer {
		t.Errorf("unexpected response %+v", resp)
	}
}
