package fetcher

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scholar-rank-go/internal/model"
)

// ScholarParser Google Scholar HTML解析器
type ScholarParser struct{}

// NewScholarParser 创建解析器
func NewScholarParser() *ScholarParser {
	return &ScholarParser{}
}

// ParseSearchResults 解析搜索结果页，每个 .gs_ri 一条记录
func (p *ScholarParser) ParseSearchResults(html string) ([]model.ScholarRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	records := []model.ScholarRecord{}
	doc.Find(".gs_ri").Each(func(i int, s *goquery.Selection) {
		record := model.ScholarRecord{}

		// 结果容器上的 data-cid 用于获取引用格式
		if cid, ok := s.Closest(".gs_r").Attr("data-cid"); ok {
			record.ID = cid
		}

		// 标题，去掉 [PDF] [BOOK] 之类的标签
		title := s.Find(".gs_rt").First().Clone()
		title.Find(".gs_ctc, .gs_ctu, .gs_ct1, .gs_ct2").Remove()
		record.Title = collapseSpace(title.Text())

		record.Metadata = collapseSpace(s.Find(".gs_a").First().Text())
		record.Snippet = collapseSpace(s.Find(".gs_rs").First().Text())

		if record.Title != "" || record.Metadata != "" {
			records = append(records, record)
		}
	})

	return records, nil
}

// ParseCitationPanel 解析引用弹窗 (#gs_citt)，按页面顺序返回各格式的引用文本
func (p *ScholarParser) ParseCitationPanel(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	citations := []string{}
	doc.Find("#gs_citt .gs_citr").Each(func(i int, s *goquery.Selection) {
		if text := collapseSpace(s.Text()); text != "" {
			citations = append(citations, text)
		}
	})
	return citations, nil
}

// ParseProfilePublications 解析个人主页的论文列表
// 作者行和venue行拼成 "作者 - venue" 的元数据格式
func (p *ScholarParser) ParseProfilePublications(html string) ([]model.ScholarRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	records := []model.ScholarRecord{}
	doc.Find(".gsc_a_tr").Each(func(i int, s *goquery.Selection) {
		title := collapseSpace(s.Find(".gsc_a_at").Text())
		if title == "" {
			return
		}

		grayText := s.Find(".gs_gray")
		var authors, venue string
		if grayText.Length() >= 1 {
			authors = collapseSpace(grayText.Eq(0).Text())
		}
		if grayText.Length() >= 2 {
			venue = collapseSpace(grayText.Eq(1).Text())
		}

		record := model.ScholarRecord{Title: title, Metadata: authors}
		if venue != "" {
			record.Metadata = authors + " - " + venue
		}
		if href, ok := s.Find(".gsc_a_at").Attr("href"); ok {
			record.ID = citationIDFromHref(href)
		}
		records = append(records, record)
	})

	return records, nil
}

// citationIDFromHref 从 /citations?...&citation_for_view=XXX 提取论文id
func citationIDFromHref(href string) string {
	const param = "citation_for_view="
	i := strings.Index(href, param)
	if i < 0 {
		return ""
	}
	id := href[i+len(param):]
	if j := strings.IndexByte(id, '&'); j >= 0 {
		id = id[:j]
	}
	return id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
