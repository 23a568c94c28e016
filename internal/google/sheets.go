package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"prokat/internal/codec"
	"prokat/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// CatalogSheet mirrors the catalog into one sheet of a spreadsheet using
// the flat-table layout.
type CatalogSheet struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewCatalogSheet(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*CatalogSheet, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return NewCatalogSheetWithService(srv, spreadsheetID, sheetName), nil
}

func NewCatalogSheetWithService(srv *sheets.Service, spreadsheetID, sheetName string) *CatalogSheet {
	if sheetName == "" {
		sheetName = models.DefaultSheetName
	}
	return &CatalogSheet{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}
}

// TestConnection проверяет подключение к таблице
func (s *CatalogSheet) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail returns the address the spreadsheet must be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
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

// ReplaceCatalog полностью перезаписывает лист каталога
func (s *CatalogSheet) ReplaceCatalog(ctx context.Context, items []models.RentalItem) error {
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, s.sheetName+"!A:Z", &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear catalog sheet: %w", err)
	}

	rows := codec.TableRows(items)
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetName+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update catalog sheet: %w", err)
	}
	return nil
}
