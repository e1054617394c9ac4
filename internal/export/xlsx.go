package export

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/cafe-review-cli/internal/model"
)

// SheetName is the worksheet holding the reviews.
const SheetName = "Reviews"

// Columns is the spreadsheet header row.
var Columns = []string{
	"City Reference", "Cafe", "Slug", "Address", "Place ID", "Lat", "Lon",
	"Overall", "Coffee", "Atmosphere", "Service", "Vibe",
	"Excerpt", "Vibe Description", "The Story", "Craft & Expertise", "Sets Apart",
	"Instagram", "Facebook", "Author", "Publish Date",
}

// WriteXLSX writes one row per record for editorial review.
func WriteXLSX(path string, recs []model.EnrichedRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range Columns {
		header.AddCell().SetString(col)
	}

	for _, r := range recs {
		row := sheet.AddRow()
		for _, s := range []string{r.CityReference, r.CafeName, r.Slug, r.CafeAddress, r.PlaceID} {
			row.AddCell().SetString(s)
		}
		for _, v := range []float64{
			r.CafeLatLon.Lat, r.CafeLatLon.Lon,
			r.OverallScore, r.CoffeeScore, r.AtmosphereScore, r.ServiceScore,
		} {
			row.AddCell().SetFloat(v)
		}
		row.AddCell().SetInt(r.VibeScore)
		for _, s := range []string{
			r.Excerpt,
			r.VibeDescription.PlainText(),
			r.TheStory.PlainText(),
			r.CraftExpertise.PlainText(),
			r.SetsApart.PlainText(),
			r.InstagramLink.FirstURI(),
			r.FacebookLink.FirstURI(),
			r.AuthorName,
			r.PublishDate,
		} {
			row.AddCell().SetString(s)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "xlsx: create dir for %s", path)
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}
