package codec

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"prokat/internal/domain"
	"prokat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func fixtureItems() []models.RentalItem {
	due := time.Date(2025, 6, 15, 0, 0, 0, 0, time.Local)

	rented := models.NewRentalItem("Electronic", "Camera", 25.5, "Brand: Canon, Review: sharp")
	rented.Availability = false
	rented.ReturnDate = &due

	returned := models.NewRentalItem("Book", "Dune", 5, "Author: Herrick")
	returned.Availability = false

	return []models.RentalItem{
		rented,
		returned,
		models.NewRentalItem("Book", "Quotes, \"Vol 1\"", 0, "line1\nline2"),
	}
}

func TestJSON_Encode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, fixtureItems()[:1]))

	expected := `[
    {
        "item_type": "Electronic",
        "name": "Camera",
        "price": 25.5,
        "details": "Brand: Canon, Review: sharp",
        "availability": false,
        "return_date": "2025-06-15"
    }
]`
	assert.Equal(t, expected, buf.String())
}

func TestJSON_Encode_WholePriceKeepsFraction(t *testing.T) {
	items := []models.RentalItem{
		models.NewBook("Dune", 5, "Author: Herbert"),
		models.NewBook("Emma", 0, "Author: Austen"),
	}

	var jsonBuf, csvBuf bytes.Buffer
	require.NoError(t, EncodeJSON(&jsonBuf, items))
	require.NoError(t, EncodeCSV(&csvBuf, items))

	assert.Contains(t, jsonBuf.String(), `"price": 5.0,`)
	assert.Contains(t, jsonBuf.String(), `"price": 0.0,`)
	assert.Contains(t, csvBuf.String(), ",5.0,")

	decoded, err := DecodeJSON(&jsonBuf)
	require.NoError(t, err)
	assert.Equal(t, 5.0, decoded[0].Price)
}

func TestJSON_NullReturnDateAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, fixtureItems()[1:2]))

	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	require.Len(t, raw, 1)
	val, present := raw[0]["return_date"]
	assert.True(t, present)
	assert.Nil(t, val)

	buf.Reset()
	require.NoError(t, EncodeJSON(&buf, nil))
	assert.Equal(t, "[]", buf.String())
}

func TestRoundTrip_IsLossy(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatCSV} {
		t.Run(string(format), func(t *testing.T) {
			items := fixtureItems()

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, format, items))

			loaded, err := Decode(&buf, format)
			require.NoError(t, err)
			require.Len(t, loaded, len(items))

			for i := range items {
				assert.Equal(t, items[i].ItemType, loaded[i].ItemType)
				assert.Equal(t, items[i].Name, loaded[i].Name)
				assert.Equal(t, items[i].Price, loaded[i].Price)
				assert.Equal(t, items[i].Details, loaded[i].Details)
				assert.True(t, loaded[i].Availability)
				assert.Nil(t, loaded[i].ReturnDate)
			}
		})
	}
}

func TestCSV_Encode_OmitsReturnDateColumn(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, fixtureItems()[:2]))

	lines := strings.Split(strings.TrimRight(buf.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "item_type,name,price,details,availability,return_date", lines[0])
	assert.Equal(t, `Electronic,Camera,25.5,"Brand: Canon, Review: sharp",False,2025-06-15`, lines[1])
	assert.Equal(t, "Book,Dune,5.0,Author: Herrick,False", lines[2])
}

func TestCSV_Decode(t *testing.T) {
	t.Run("ByHeaderName", func(t *testing.T) {
		input := "name,price,item_type,details\nDune,5,Book,Author: H\n"
		items, err := DecodeCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Book", items[0].ItemType)
		assert.Equal(t, "Dune", items[0].Name)
		assert.Equal(t, 5.0, items[0].Price)
	})

	t.Run("ShortAndLongRows", func(t *testing.T) {
		input := "item_type,name,price,details,availability,return_date\n" +
			"Book,Dune,5.0,x,True\n" +
			"Book,Emma,3.0,y,False,2025-01-01,extra\n" +
			"Book,Bare,1.0\n"
		items, err := DecodeCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "Emma", items[1].Name)
		assert.Equal(t, "", items[2].Details)
	})

	t.Run("Empty", func(t *testing.T) {
		items, err := DecodeCSV(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("MissingColumn", func(t *testing.T) {
		_, err := DecodeCSV(strings.NewReader("item_type,name,details\nBook,Dune,x\n"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("BadPrice", func(t *testing.T) {
		_, err := DecodeCSV(strings.NewReader("item_type,name,price,details\nBook,Dune,cheap,x\n"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestJSON_Decode(t *testing.T) {
	t.Run("StringPrice", func(t *testing.T) {
		input := `[{"item_type":"Book","name":"Dune","price":"7.5","details":"d","availability":false,"return_date":"2025-01-01"}]`
		items, err := DecodeJSON(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 7.5, items[0].Price)
		assert.True(t, items[0].Availability)
		assert.Nil(t, items[0].ReturnDate)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := DecodeJSON(strings.NewReader(`{"not":"a list"}`))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("NullPrice", func(t *testing.T) {
		_, err := DecodeJSON(strings.NewReader(`[{"name":"x","price":null}]`))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{5, "5.0"},
		{0, "0.0"},
		{2.5, "2.5"},
		{-3, "-3.0"},
		{19.99, "19.99"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPrice(tt.in))
	}
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()

	t.Run("WriteAndRead", func(t *testing.T) {
		path := filepath.Join(dir, "catalog.csv")
		require.NoError(t, WriteFile(path, FormatCSV, fixtureItems()))

		items, err := ReadFile(path, FormatCSV)
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})

	t.Run("ReadMissing", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(dir, "missing.json"), FormatJSON)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("WriteIntoMissingDir", func(t *testing.T) {
		err := WriteFile(filepath.Join(dir, "nope", "catalog.json"), FormatJSON, nil)
		assert.Error(t, err)
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		err := WriteFile(filepath.Join(dir, "x"), Format("xml"), nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, ExportXLSX(path, fixtureItems()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{xlsxSheet}, f.GetSheetList())

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "Camera", rows[1][1])
	assert.Equal(t, "2025-06-15", rows[1][5])
	assert.Len(t, rows[2], 5)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, fixtureItems()))
	assert.NotZero(t, buf.Len())
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.yaml")
	content := `
items:
  - item_type: Electronic
    name: Drone
    price: 40
    details: "Brand: DJI"
  - item_type: Book
    name: Dune
    price: 5.5
    details: "Author: Herbert"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	items, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Drone", items[0].Name)
	assert.Equal(t, 40.0, items[0].Price)
	assert.True(t, items[1].Availability)

	_, err = LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadSeed_Shipped(t *testing.T) {
	items, err := LoadSeed(filepath.Join("..", "..", "configs", "items.yaml"))
	require.NoError(t, err)
	require.Len(t, items, 4)
	for _, item := range items {
		assert.True(t, item.Availability, item.Name)
		assert.Nil(t, item.ReturnDate, item.Name)
	}
}
