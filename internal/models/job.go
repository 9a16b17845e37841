package models

// IndexResult summarizes a chunk rebuild of one episode.
type IndexResult struct {
	EpisodeID    string `json:"episode_id"`
	LinesIndexed int    `json:"lines_indexed"`
	ChunksBuilt  int    `json:"chunks_built"`
	CacheWarmed  bool   `json:"cache_warmed"`
}
