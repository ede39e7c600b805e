package model

// PlaylistVideo represents a single video in a playlist
type PlaylistVideo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Playlist represents a YouTube playlist with its videos
type Playlist struct {
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	URL    string           `json:"url"`
	Videos []*PlaylistVideo `json:"videos"`
}

// NewPlaylist creates a new playlist instance
func NewPlaylist(id, url string) *Playlist {
	return &Playlist{
		ID:     id,
		URL:    url,
		Videos: make([]*PlaylistVideo, 0),
	}
}

// AddVideo adds a video to the playlist
func (p *Playlist) AddVideo(video *PlaylistVideo) {
	p.Videos = append(p.Videos, video)
}

// TotalVideos returns the number of videos in the playlist
func (p *Playlist) TotalVideos() int {
	return len(p.Videos)
}
