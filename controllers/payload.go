package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/phillip/parenting-hub-go/apperr"
	"github.com/phillip/parenting-hub-go/media"
	"github.com/phillip/parenting-hub-go/models"
	"github.com/phillip/parenting-hub-go/store"
)

// Multipart form fields. "data" carries the JSON document, "image" the file.
const (
	formData  = "data"
	formImage = "image"
)

const maxListLimit = 500

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

// readDocument reads the JSON document of a create or update request, from
// the body or from the "data" form field of a multipart request.
func readDocument(c *gin.Context) ([]byte, error) {
	if isMultipart(c) {
		raw := c.PostForm(formData)
		if strings.TrimSpace(raw) == "" {
			return nil, apperr.NewValidationError(formData, "is required")
		}
		return []byte(raw), nil
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, apperr.NewValidationError("payload", "could not be read")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, apperr.NewValidationError("payload", "is required")
	}
	return raw, nil
}

// decodeStrict decodes raw into v, rejecting fields v does not have.
func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return jsonError(err)
	}
	return nil
}

func jsonError(err error) error {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return apperr.NewValidationError(te.Field, "has the wrong type, expected "+te.Type.String())
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return apperr.NewValidationError(strings.Trim(field, `"`), "is not a known field")
	}
	return apperr.NewValidationError("payload", "is not valid JSON")
}

// readImage returns the uploaded image of a multipart request, or nil when
// the request carries none. The file is buffered so an upload that outlives
// the request still has its bytes.
func readImage(c *gin.Context) (*media.File, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	fh, err := c.FormFile(formImage)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewValidationError(formImage, "could not be read")
	}

	f := &media.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	}
	if f.Size >= media.MaxFileSize {
		// Rejected by validation without reading the body.
		f.Body = bytes.NewReader(nil)
		return f, nil
	}

	src, err := fh.Open()
	if err != nil {
		return nil, apperr.NewValidationError(formImage, "could not be read")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, media.MaxFileSize))
	if err != nil {
		return nil, apperr.NewValidationError(formImage, "could not be read")
	}
	if f.ContentType == "" || f.ContentType == "application/octet-stream" {
		f.ContentType = http.DetectContentType(data)
	}
	f.Body = bytes.NewReader(data)
	f.Size = int64(len(data))
	return f, nil
}

// parseQuery builds a store query from the request: every query parameter
// naming a field of T becomes an equality filter, and orderBy, desc and limit
// shape the result.
func parseQuery[T any](c *gin.Context) (store.Query, error) {
	var q store.Query
	fields := models.GoFieldNames(new(T))
	docType := reflect.TypeOf(new(T)).Elem()

	for key, values := range c.Request.URL.Query() {
		switch key {
		case "orderBy", "desc", "limit":
			continue
		}
		goName, ok := fields[key]
		if !ok {
			return q, apperr.NewValidationError(key, "is not a filterable field")
		}
		sf, _ := docType.FieldByName(goName)
		v, err := filterValue(sf.Type, values[0])
		if err != nil {
			return q, apperr.NewValidationError(key, "has the wrong type, expected "+sf.Type.String())
		}
		q = q.Where(key, v)
	}

	if orderBy := c.Query("orderBy"); orderBy != "" {
		if _, ok := fields[orderBy]; !ok {
			return q, apperr.NewValidationError("orderBy", "is not a field")
		}
		desc, _ := strconv.ParseBool(c.Query("desc"))
		q = q.Sorted(orderBy, desc)
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			return q, apperr.NewValidationError("limit", "must be between 1 and "+strconv.Itoa(maxListLimit))
		}
		q = q.Limited(n)
	}
	return q, nil
}

// filterValue converts a query string value to the field's type.
func filterValue(t reflect.Type, raw string) (any, error) {
	if t.Kind() == reflect.String {
		return raw, nil
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal([]byte(raw), ptr.Interface()); err != nil {
		// Quoted forms such as dates.
		if err := json.Unmarshal([]byte(strconv.Quote(raw)), ptr.Interface()); err != nil {
			return nil, err
		}
	}
	return ptr.Elem().Interface(), nil
}
