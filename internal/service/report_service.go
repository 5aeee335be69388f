package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/lshigami/formresponses/internal/dto"
	"github.com/lshigami/formresponses/internal/metrics"
	"github.com/lshigami/formresponses/internal/repository"
	"github.com/lshigami/formresponses/internal/storage"
	"github.com/lshigami/formresponses/pkg/value"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportFile is a generated spreadsheet ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	// ArchiveLocation is set when a copy was archived.
	ArchiveLocation string
}

type ReportService interface {
	// Aggregate counts answer values per question. List answers count each
	// element separately.
	Aggregate(formID int) (dto.AggregateDTO, error)
	// Export renders one row per response and one column per question that
	// has at least one answer.
	Export(ctx context.Context, formID int) (*ExportFile, error)
}

type reportService struct {
	responseRepo repository.ResponseRepository
	archiver     storage.Archiver
}

func NewReportService(responseRepo repository.ResponseRepository, archiver storage.Archiver) ReportService {
	return &reportService{responseRepo: responseRepo, archiver: archiver}
}

func (s *reportService) Aggregate(formID int) (dto.AggregateDTO, error) {
	answers, err := s.responseRepo.FindAnswersByFormID(formID)
	if err != nil {
		log.Error().Err(err).Int("formID", formID).Msg("Aggregate: query failed")
		return nil, err
	}

	agg := dto.AggregateDTO{}
	for _, a := range answers {
		bucket, ok := agg[a.QuestionID]
		if !ok {
			bucket = map[string]int{}
			agg[a.QuestionID] = bucket
		}
		if items, isList := a.Value.Items(); isList {
			for _, item := range items {
				bucket[item.Key()]++
			}
			continue
		}
		bucket[a.Value.Key()]++
	}
	return agg, nil
}

func (s *reportService) Export(ctx context.Context, formID int) (*ExportFile, error) {
	responses, err := s.responseRepo.FindByFormID(formID)
	if err != nil {
		log.Error().Err(err).Int("formID", formID).Msg("Export: query failed")
		return nil, err
	}

	qidSet := map[int]struct{}{}
	for _, r := range responses {
		for _, a := range r.Answers {
			qidSet[a.QuestionID] = struct{}{}
		}
	}
	qids := make([]int, 0, len(qidSet))
	for qid := range qidSet {
		qids = append(qids, qid)
	}
	sort.Ints(qids)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("Export: closing workbook")
		}
	}()

	sheet := fmt.Sprintf("form_%d", formID)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	header := make([]interface{}, 0, len(qids)+1)
	header = append(header, "response_id")
	for _, qid := range qids {
		header = append(header, "q"+strconv.Itoa(qid))
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, r := range responses {
		byQuestion := make(map[int]value.Value, len(r.Answers))
		for _, a := range r.Answers {
			byQuestion[a.QuestionID] = a.Value
		}
		row := make([]interface{}, 0, len(qids)+1)
		row = append(row, r.ID)
		for _, qid := range qids {
			v, ok := byQuestion[qid]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, cellValue(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write response %d: %w", r.ID, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}

	out := &ExportFile{
		Filename:    fmt.Sprintf("form_%d_responses.xlsx", formID),
		ContentType: XLSXContentType,
		Data:        buf.Bytes(),
	}

	location, err := s.archiver.Archive(ctx, formID, out.Data)
	if err != nil {
		log.Warn().Err(err).Int("formID", formID).Msg("Export: archive upload failed")
	}
	out.ArchiveLocation = location
	metrics.ExportsTotal.WithLabelValues(strconv.FormatBool(location != "")).Inc()

	log.Info().Int("formID", formID).Int("responses", len(responses)).Int("columns", len(qids)).Msg("Export: workbook generated")
	return out, nil
}

// cellValue keeps numbers and booleans typed in the sheet. Lists are joined
// into one text cell.
func cellValue(v value.Value) interface{} {
	switch v.Kind() {
	case value.Number:
		if i, ok := v.Int(); ok {
			return i
		}
		if f, ok := v.Float(); ok {
			return f
		}
		return v.Display()
	case value.Bool:
		b, _ := v.Boolean()
		return b
	default:
		return v.Display()
	}
}
