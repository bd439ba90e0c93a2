package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"scholar-rank-go/internal/model"
	"scholar-rank-go/internal/utils"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 8 << 20

var (
	// ErrInvalidBody 请求体不是合法JSON
	ErrInvalidBody = errors.New("invalid request body")
	// ErrInvalidRequest 参数校验失败
	ErrInvalidRequest = errors.New("invalid request")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// MatchRequest 片段匹配请求
type MatchRequest struct {
	Text          string   `json:"text" validate:"max=4096"`
	Alternates    []string `json:"alternates,omitempty" validate:"max=16,dive,max=4096"`
	Title         string   `json:"title,omitempty" validate:"max=1024"`
	Metadata      string   `json:"metadata,omitempty" validate:"max=4096"`
	CitationVenue string   `json:"citation_venue,omitempty" validate:"max=1024"`
}

// HasCitationVenue 调用方已给出清理后的venue文本
func (r *MatchRequest) HasCitationVenue() bool {
	return strings.TrimSpace(r.CitationVenue) != ""
}

// Query 指定 citation_venue 时直接匹配该文本
func (r *MatchRequest) Query() model.Query {
	return model.Query{
		Text:          r.Text,
		CitationVenue: r.CitationVenue,
		ExcludeTokens: utils.Tokenize(r.Title),
	}
}

// Record 其余情况按一条记录处理：text 为首个引用片段，alternates 为备选
func (r *MatchRequest) Record() model.ScholarRecord {
	record := model.ScholarRecord{Title: r.Title, Metadata: r.Metadata}
	if strings.TrimSpace(r.Text) != "" {
		record.Citations = append(record.Citations, r.Text)
	}
	for _, alt := range r.Alternates {
		if strings.TrimSpace(alt) != "" {
			record.Citations = append(record.Citations, alt)
		}
	}
	return record
}

func (r *MatchRequest) check() error {
	if strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.CitationVenue) == "" &&
		strings.TrimSpace(r.Metadata) == "" && strings.TrimSpace(r.Title) == "" && len(r.Alternates) == 0 {
		return fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}
	return nil
}

// AnnotateRequest 批量标注请求，html 和 records 二选一
type AnnotateRequest struct {
	HTML    string                `json:"html,omitempty" validate:"max=4194304"`
	Records []model.ScholarRecord `json:"records,omitempty" validate:"max=200,dive"`
}

func (r *AnnotateRequest) check() error {
	if strings.TrimSpace(r.HTML) == "" && len(r.Records) == 0 {
		return fmt.Errorf("%w: html or records is required", ErrInvalidRequest)
	}
	return nil
}

// SettingsRequest 设置更新
type SettingsRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type checker interface {
	check() error
}

// decodeRequest 解析JSON并校验
func decodeRequest(w http.ResponseWriter, r *http.Request, dest any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidBody)
		}
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	if err := validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if c, ok := dest.(checker); ok {
		return c.check()
	}
	return nil
}
