package handler

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
	"github.com/ogurasousui/hrbank-api/internal/platform/apperr"
	"github.com/ogurasousui/hrbank-api/internal/platform/optional"
)

const dateLayout = "2006-01-02"

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRequest は DTO のタグを検証し、違反をフィールド単位の詳細に変換します。
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	details := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	return apperr.WithDetails(apperr.Wrap(err, apperr.ErrValidation, "invalid request"), details)
}

func invalidParam(name string, err error) error {
	return apperr.WithDetails(
		apperr.Wrap(err, apperr.ErrValidation, "invalid parameter "+name),
		map[string]string{name: err.Error()},
	)
}

// clientIP は X-Forwarded-For の先頭、なければ接続元アドレスを返します。
func clientIP(c echo.Context) string {
	if xff := c.Request().Header.Get(echo.HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(c.Request().RemoteAddr)
	if err != nil {
		return c.Request().RemoteAddr
	}
	return host
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.WithDetails(apperr.New(apperr.ErrValidation, "invalid id"), map[string]string{"id": c.Param("id")})
	}
	return id, nil
}

func queryString(c echo.Context, name string) string {
	return strings.TrimSpace(c.QueryParam(name))
}

func queryInt64(c echo.Context, name string) (*int64, error) {
	raw := queryString(c, name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, invalidParam(name, err)
	}
	return &v, nil
}

func queryInt(c echo.Context, name string) (*int, error) {
	raw := queryString(c, name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, invalidParam(name, err)
	}
	return &v, nil
}

func queryDate(c echo.Context, name string) (*time.Time, error) {
	raw := queryString(c, name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, invalidParam(name, err)
	}
	return &t, nil
}

// queryInstant は RFC 3339 の日時を受け付けます。日付のみの場合は UTC の 0 時です。
func queryInstant(c echo.Context, name string) (*time.Time, error) {
	raw := queryString(c, name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		d, dateErr := time.ParseInLocation(dateLayout, raw, time.UTC)
		if dateErr != nil {
			return nil, invalidParam(name, err)
		}
		t = d
	}
	t = t.UTC()
	return &t, nil
}

// pageRequest は一覧系エンドポイント共通のページ指定を読み取ります。
func pageRequest(c echo.Context) (pagination.Request, error) {
	idAfter, err := queryInt64(c, "idAfter")
	if err != nil {
		return pagination.Request{}, err
	}
	size, err := queryInt(c, "size")
	if err != nil {
		return pagination.Request{}, err
	}
	return pagination.Request{
		SortField:     queryString(c, "sortField"),
		SortDirection: queryString(c, "sortDirection"),
		Cursor:        queryString(c, "cursor"),
		IDAfter:       idAfter,
		Size:          size,
	}, nil
}

// civilDate は "2006-01-02" 形式の暦日です。
type civilDate time.Time

func (d *civilDate) UnmarshalJSON(b []byte) error {
	raw, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return err
	}
	*d = civilDate(t)
	return nil
}

func (d *civilDate) ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := time.Time(*d)
	return &t
}

// civilDateValue は未指定と null の区別を保ったまま time.Time に変換します。
func civilDateValue(v optional.Value[civilDate]) optional.Value[time.Time] {
	if !v.Set {
		return optional.Value[time.Time]{}
	}
	return optional.FromPtr(v.Ptr().ptr())
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
