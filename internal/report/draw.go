//go:build !gocv

package report

import (
	"image"

	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

func drawRecords(dst *image.RGBA, records []entity.PlateRecord) {
	drawRecordsPure(dst, records)
}
