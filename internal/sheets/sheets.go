package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"calbook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrRowNotFound is returned when no sheet row matches the booking.
var ErrRowNotFound = errors.New("booking row not found")

// Service mirrors booking records into a Google spreadsheet so operators can
// watch outcomes without touching the database.
type Service struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
}

func NewService(credentialsFile, spreadsheetID string) (*Service, error) {
	ctx := context.Background()

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &Service{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[string]int),
	}, nil
}

// TestConnection reads the header cell to verify access.
func (s *Service) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, "Bookings!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail extracts the client_email from the credentials file,
// handy for sharing the spreadsheet with the right account.
func (s *Service) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// AppendBooking appends one booking as a new row.
func (s *Service) AppendBooking(ctx context.Context, booking *models.Booking) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(booking)},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, "Bookings!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// UpdateBooking rewrites the row for the booking, appending when missing.
func (s *Service) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil {
		return fmt.Errorf("booking is nil")
	}

	rowIdx, err := s.findBookingRow(ctx, booking.UUID)
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			return s.AppendBooking(ctx, booking)
		}
		return err
	}

	rangeData := fmt.Sprintf("Bookings!A%d:F%d", rowIdx, rowIdx)
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(booking)},
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// ReplaceBookingsSheet overwrites the data rows with the given set.
func (s *Service) ReplaceBookingsSheet(ctx context.Context, bookings []*models.Booking) error {
	clearRange := "Bookings!A2:F"
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear bookings sheet: %v", err)
	}

	var values [][]interface{}
	for _, booking := range bookings {
		values = append(values, bookingRowValues(booking))
	}

	if len(values) > 0 {
		valueRange := &sheets.ValueRange{Values: values}
		_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, "Bookings!A2", valueRange).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to update bookings sheet: %v", err)
		}
	}

	s.cacheMu.Lock()
	s.rowCache = make(map[string]int)
	for i, b := range bookings {
		s.rowCache[b.UUID] = i + 2 // data starts at row 2
	}
	s.cacheMu.Unlock()

	return nil
}

// findBookingRow locates the 1-based row for a booking UUID in column B.
func (s *Service) findBookingRow(ctx context.Context, bookingUUID string) (int, error) {
	if bookingUUID == "" {
		return 0, fmt.Errorf("booking uuid is required")
	}

	if row, ok := s.getCachedRow(bookingUUID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, "Bookings!B:B").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if v, ok := row[0].(string); ok && v == bookingUUID {
			rowIdx := i + 1 // values are zero-based, sheet rows are 1-based
			s.setCachedRow(bookingUUID, rowIdx)
			return rowIdx, nil
		}
	}

	return 0, ErrRowNotFound
}

func (s *Service) getCachedRow(uuid string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[uuid]
	return row, ok
}

func (s *Service) setCachedRow(uuid string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[uuid] = row
}

func bookingRowValues(booking *models.Booking) []interface{} {
	bookedFor := ""
	if booking.BookedFor != nil {
		bookedFor = booking.BookedFor.Format("2006-01-02 15:04")
	}

	return []interface{}{
		booking.ID,
		booking.UUID,
		booking.Email,
		booking.Status,
		bookedFor,
		booking.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
