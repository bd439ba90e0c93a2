package service

// seedDataset 与扩展自带的种子数据集格式一致
func seedDataset() []map[string]any {
	return []map[string]any{
		{
			"type":         "conference",
			"displayName":  "NeurIPS",
			"officialName": "Conference on Neural Information Processing Systems",
			"aliases": []any{
				"NeurIPS",
				"NIPS",
				"Advances in Neural Information Processing Systems",
			},
			"rank":        "A*",
			"rating":      "Top-tier machine learning conference",
			"area":        "Artificial Intelligence & Machine Learning",
			"source":      "ConferenceRanks.com (AI & ML)",
			"sourceUrl":   "http://www.conferenceranks.com/",
			"lastUpdated": "2023",
		},
		{
			"type":         "conference",
			"displayName":  "ICML",
			"officialName": "International Conference on Machine Learning",
			"aliases":      []any{"ICML", "International Conference on Machine Learning"},
			"rank":         "A*",
		},
		{
			"type":         "journal",
			"displayName":  "JMLR",
			"officialName": "Journal of Machine Learning Research",
			"aliases":      []any{"JMLR"},
			"rank":         "Q1",
		},
		{
			"type":         "conference",
			"displayName":  "CVPR",
			"officialName": "IEEE/CVF Conference on Computer Vision and Pattern Recognition",
			"aliases": []any{
				"CVPR",
				"Conference on Computer Vision and Pattern Recognition",
				"IEEE Conference on Computer Vision and Pattern Recognition",
			},
			"rank": "A*",
		},
		{
			"type":         "journal",
			"displayName":  "Nature",
			"officialName": "Nature",
			"aliases":      []any{"Nature"},
			"rank":         "Q1",
		},
		{
			"type":         "conference",
			"displayName":  "ACM MM",
			"officialName": "ACM International Conference on Multimedia",
			"aliases":      []any{"ACM MM", "MM"},
			"rank":         "A*",
		},
	}
}
