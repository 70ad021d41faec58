package store

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/vodkit/vodkit/logging"
)

// SheetsConfig holds the connection settings for a spreadsheet-backed store.
type SheetsConfig struct {
	// SpreadsheetID identifies the shared spreadsheet.
	SpreadsheetID string

	// CredentialsFile is the path to the service-account JSON key.
	CredentialsFile string

	// DeadLetter maps live tables to quarantine tables. Unmapped tables
	// fall back to DeadLetterTableFor.
	DeadLetter map[string]string
}

// Validate checks required fields.
func (c SheetsConfig) Validate() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet ID is required")
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("credentials file is required")
	}
	return nil
}

// SheetsStore implements RowStore on a Google spreadsheet. Each table is a
// worksheet whose first row holds the column headers.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
	deadLetter    map[string]string
	log           *logging.Logger

	mu       sync.Mutex
	sheetIDs map[string]int64  // worksheet title -> numeric sheet ID
	headers  map[string][]string // worksheet title -> header row
}

// NewSheetsStore connects to the spreadsheet and resolves its worksheets.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig, log *logging.Logger) (*SheetsStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.New()
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}

	meta, err := svc.Spreadsheets.Get(cfg.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet %s: %w", cfg.SpreadsheetID, err)
	}

	sheetIDs := make(map[string]int64, len(meta.Sheets))
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}

	deadLetter := map[string]string{TableTasks: TableDeadLetterTasks}
	for k, v := range cfg.DeadLetter {
		deadLetter[k] = v
	}

	return &SheetsStore{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		deadLetter:    deadLetter,
		log:           log.WithComponent("store"),
		sheetIDs:      sheetIDs,
		headers:       make(map[string][]string),
	}, nil
}

// GetAll returns every data row of the worksheet in sheet order.
func (s *SheetsStore) GetAll(ctx context.Context, table string) ([]Row, error) {
	values, err := s.readTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(values) <= 1 {
		return nil, nil
	}

	header := toStrings(values[0])
	rows := make([]Row, 0, len(values)-1)
	for _, raw := range values[1:] {
		rows = append(rows, zipRow(header, raw))
	}
	return rows, nil
}

// GetRow returns the row with the given ID.
func (s *SheetsStore) GetRow(ctx context.Context, table, id string) (Row, error) {
	rows, err := s.GetAll(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.ID() == id {
			return r, nil
		}
	}
	return nil, ErrRowNotFound
}

// FindFirstPending returns the first pending row in sheet order.
func (s *SheetsStore) FindFirstPending(ctx context.Context, table string) (Row, error) {
	rows, err := s.GetAll(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.Status() == StatusPending {
			return r, nil
		}
	}
	return nil, ErrNoPendingRows
}

// UpdateColumns overwrites the named cells of the row with the given ID.
// A missing row is a logged no-op.
func (s *SheetsStore) UpdateColumns(ctx context.Context, table, id string, updates map[string]string) error {
	header, err := s.tableHeader(ctx, table)
	if err != nil {
		return err
	}

	rowIdx, _, err := s.findRowIndex(ctx, table, id)
	if err != nil {
		return err
	}
	if rowIdx < 0 {
		s.log.Warn("update skipped, row not found", map[string]interface{}{
			"table": table,
			"row":   id,
		})
		return nil
	}

	var data []*sheets.ValueRange
	for col, val := range updates {
		colIdx := indexOfHeader(header, col)
		if colIdx < 0 {
			return fmt.Errorf("table %s has no column %q", table, col)
		}
		cell := fmt.Sprintf("'%s'!%s%d", table, columnLetter(colIdx), rowIdx)
		data = append(data, &sheets.ValueRange{
			Range:  cell,
			Values: [][]interface{}{{val}},
		})
	}
	if len(data) == 0 {
		return nil
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}
	if _, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("updating row %s in %s: %w", id, table, err)
	}
	return nil
}

// AppendRows appends the rows to the end of the worksheet, ordering values
// by the worksheet's header row. Columns absent from a row become blanks.
func (s *SheetsStore) AppendRows(ctx context.Context, table string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	header, err := s.tableHeader(ctx, table)
	if err != nil {
		return err
	}

	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		line := make([]interface{}, len(header))
		for i, col := range header {
			line[i] = r[col]
		}
		values = append(values, line)
	}

	vr := &sheets.ValueRange{Values: values}
	_, err = s.svc.Spreadsheets.Values.Append(s.spreadsheetID, quoteRange(table), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending %d rows to %s: %w", len(rows), table, err)
	}
	return nil
}

// MoveToDeadLetter appends the row to the quarantine worksheet with the
// error message recorded, then deletes it from the live worksheet.
func (s *SheetsStore) MoveToDeadLetter(ctx context.Context, table, id, errorMessage string) error {
	rowIdx, row, err := s.findRowIndex(ctx, table, id)
	if err != nil {
		return err
	}
	if rowIdx < 0 {
		// Already removed by a racing worker.
		s.log.Warn("dead-letter move skipped, row not found", map[string]interface{}{
			"table": table,
			"row":   id,
		})
		return nil
	}

	quarantine := s.deadLetter[table]
	if quarantine == "" {
		quarantine = DeadLetterTableFor(table)
	}

	moved := row.Clone()
	moved[ColLastError] = errorMessage
	if err := s.AppendRows(ctx, quarantine, []Row{moved}); err != nil {
		return err
	}

	sheetID, ok := s.sheetIDs[table]
	if !ok {
		return fmt.Errorf("worksheet %s: %w", table, ErrTableNotFound)
	}

	// rowIdx is 1-based including the header; DeleteDimension is 0-based.
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowIdx - 1),
					EndIndex:   int64(rowIdx),
				},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deleting row %s from %s: %w", id, table, err)
	}
	return nil
}

// Close releases resources. The sheets client holds no connections to close.
func (s *SheetsStore) Close() error {
	return nil
}

// readTable fetches the worksheet's full value grid, header row included.
func (s *SheetsStore) readTable(ctx context.Context, table string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteRange(table)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading table %s: %w", table, err)
	}
	return resp.Values, nil
}

// tableHeader returns the worksheet's header row, cached after first read.
func (s *SheetsStore) tableHeader(ctx context.Context, table string) ([]string, error) {
	s.mu.Lock()
	if h, ok := s.headers[table]; ok {
		s.mu.Unlock()
		return h, nil
	}
	s.mu.Unlock()

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, fmt.Sprintf("'%s'!1:1", table)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", table, err)
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("table %s has no header row", table)
	}
	header := toStrings(resp.Values[0])

	s.mu.Lock()
	s.headers[table] = header
	s.mu.Unlock()
	return header, nil
}

// findRowIndex locates the row with the given ID and returns its 1-based
// sheet row number (header row is 1, first data row is 2) and contents.
// Returns -1 when the row does not exist.
func (s *SheetsStore) findRowIndex(ctx context.Context, table, id string) (int, Row, error) {
	values, err := s.readTable(ctx, table)
	if err != nil {
		return -1, nil, err
	}
	if len(values) <= 1 {
		return -1, nil, nil
	}

	header := toStrings(values[0])
	idCol := indexOfHeader(header, ColID)
	if idCol < 0 {
		return -1, nil, fmt.Errorf("table %s has no %s column", table, ColID)
	}

	for i, raw := range values[1:] {
		if idCol < len(raw) && fmt.Sprintf("%v", raw[idCol]) == id {
			return i + 2, zipRow(header, raw), nil
		}
	}
	return -1, nil, nil
}

// zipRow pairs a header with a raw value row. Short rows leave trailing
// columns empty, matching how the API reports blank cells.
func zipRow(header []string, raw []interface{}) Row {
	row := make(Row, len(header))
	for i, col := range header {
		if i < len(raw) {
			row[col] = fmt.Sprintf("%v", raw[i])
		} else {
			row[col] = ""
		}
	}
	return row
}

func toStrings(raw []interface{}) []string {
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = fmt.Sprintf("%v", v)
	}
	return out
}

func indexOfHeader(header []string, col string) int {
	for i, h := range header {
		if h == col {
			return i
		}
	}
	return -1
}

// quoteRange quotes a worksheet title for use as an A1 range.
func quoteRange(table string) string {
	return "'" + table + "'"
}

// columnLetter converts a zero-based column index to its A1 letter form.
func columnLetter(idx int) string {
	letters := ""
	for idx >= 0 {
		letters = string(rune('A'+idx%26)) + letters
		idx = idx/26 - 1
	}
	return letters
}
