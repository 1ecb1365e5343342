package handler

import (
	"bytes"
	"cmp"
	"fmt"
	"net/http"
	"time"

	"live-tick-excel/internal/api/constant"
	"live-tick-excel/internal/api/dto"
	"live-tick-excel/internal/api/usecase"
	"live-tick-excel/internal/export"

	"github.com/gin-gonic/gin"
)

type HandlerItf interface {
	GetLivePricesCSV(*gin.Context)
	GetLivePricesXLSX(*gin.Context)
	GetSnapshot(*gin.Context)
	GetHealth(*gin.Context)
}

type Handler struct {
	uc    usecase.UsecaseItf
	sheet string
}

var _ HandlerItf = (*Handler)(nil)

func NewHandler(uc usecase.UsecaseItf, sheet string) *Handler {
	return &Handler{uc: uc, sheet: sheet}
}

func (hd *Handler) GetLivePricesCSV(ctx *gin.Context) {
	hd.serveFile(ctx, constant.FormatCSV)
}

func (hd *Handler) GetLivePricesXLSX(ctx *gin.Context) {
	hd.serveFile(ctx, constant.FormatXLSX)
}

// GetSnapshot returns the snapshot as JSON, or as a file when ?format=
// names one.
func (hd *Handler) GetSnapshot(ctx *gin.Context) {
	var req dto.GetSnapshotReq
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.Error(err)
		return
	}

	format := cmp.Or(req.Format, constant.DefaultFormat)
	if format != constant.FormatJSON {
		hd.serveFile(ctx, format)
		return
	}

	// usecase
	rows, err := hd.uc.GetSnapshot(ctx.Request.Context())
	if err != nil {
		ctx.Error(err)
		return
	}
	if len(rows) == 0 {
		ctx.Error(constant.ErrRenderSnapshot)
		return
	}
	if ctx.Request.Context().Err() != nil {
		ctx.Error(constant.ErrSnapshotTimeout)
		return
	}

	// return response
	ctx.JSON(http.StatusOK, dto.Res{
		Success: true,
		Data: dto.GetSnapshotRes{
			Columns:     rows[0],
			Rows:        rows[1:],
			GeneratedAt: time.Now(),
		},
	})
}

// GetHealth reports stream and ingest state. It answers 503 while the
// stream is not connected so pollers can tell stale data apart.
func (hd *Handler) GetHealth(ctx *gin.Context) {
	status, err := hd.uc.GetStatus(ctx.Request.Context())
	if err != nil {
		ctx.Error(err)
		return
	}

	res := dto.Res{
		Success: status.Stream.Connected,
		Data: dto.GetHealthRes{
			Instruments: status.Instruments,
			Stream:      status.Stream,
			Ingest:      status.Ingest,
		},
	}
	code := http.StatusOK
	if !status.Stream.Connected {
		code = http.StatusServiceUnavailable
		res.Error = "stream " + status.Stream.State
	}
	ctx.JSON(code, res)
}

func (hd *Handler) serveFile(ctx *gin.Context, format string) {
	rows, err := hd.uc.GetSnapshot(ctx.Request.Context())
	if err != nil {
		ctx.Error(err)
		return
	}

	// Render before writing anything so a failure still gets a JSON error.
	var (
		buf         bytes.Buffer
		name        string
		contentType string
	)
	switch format {
	case constant.FormatCSV:
		name, contentType = constant.CSVFileName, constant.CSVContentType
		err = export.WriteCSV(&buf, rows)
	case constant.FormatXLSX:
		name, contentType = constant.XLSXFileName, constant.XLSXContentType
		err = export.WriteXLSX(&buf, rows, hd.sheet)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		ctx.Error(fmt.Errorf("%w: %v", constant.ErrRenderSnapshot, err))
		return
	}

	if ctx.Request.Context().Err() != nil {
		ctx.Error(constant.ErrSnapshotTimeout)
		return
	}
	ctx.Header("Content-Disposition", "attachment; filename="+name)
	ctx.Header("Cache-Control", "no-store")
	ctx.Data(http.StatusOK, contentType, buf.Bytes())
}
