package playback

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"hlsengine/internal/fetch"
	"hlsengine/internal/models"
)

const base = "https://cdn.test/vod/"

// fakeFetcher serves registered resources. Unknown URLs answer 404.
type fakeFetcher struct {
	mu    sync.Mutex
	res   map[string][]byte
	fail  map[string]error
	block map[string]bool
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		res:   make(map[string][]byte),
		fail:  make(map[string]error),
		block: make(map[string]bool),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) FetchText(ctx context.Context, url string) (string, error) {
	data, err := f.get(ctx, url)
	return string(data), err
}

func (f *fakeFetcher) FetchBytes(ctx context.Context, url string, r *models.ByteRange) ([]byte, error) {
	return f.get(ctx, url)
}

func (f *fakeFetcher) get(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	data, ok := f.res[url]
	err := f.fail[url]
	block := f.block[url]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &fetch.StatusError{URL: url, StatusCode: 404}
	}
	return data, nil
}

func (f *fakeFetcher) set(url string, body string) {
	f.mu.Lock()
	f.res[url] = []byte(body)
	f.mu.Unlock()
}

func (f *fakeFetcher) setFail(url string, err error) {
	f.mu.Lock()
	if err == nil {
		delete(f.fail, url)
	} else {
		f.fail[url] = err
	}
	f.mu.Unlock()
}

func (f *fakeFetcher) setBlock(url string, block bool) {
	f.mu.Lock()
	f.block[url] = block
	f.mu.Unlock()
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) countSuffix(suffix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for url, c := range f.calls {
		if strings.HasSuffix(url, suffix) {
			n += c
		}
	}
	return n
}

const demuxedMaster = `#EXTM3U
#EXT-X-VERSION:7
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="English",LANGUAGE="en",DEFAULT=YES,AUTOSELECT=YES,URI="audio/en.m3u8"
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="Deutsch",LANGUAGE="de",URI="audio/de.m3u8"
#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",NAME="English",LANGUAGE="en",URI="subs/en.m3u8"
#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",NAME="English (forced)",LANGUAGE="en",FORCED=YES,URI="subs/forced.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360,CODECS="avc1.4d401e,mp4a.40.2",AUDIO="aud",SUBTITLES="subs"
video/low.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=3000000,RESOLUTION=1280x720,CODECS="avc1.64001f,mp4a.40.2",AUDIO="aud",SUBTITLES="subs"
video/high.m3u8
`

const muxedMaster = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360,CODECS="avc1.4d401e,mp4a.40.2"
video/low.m3u8
`

// addMedia registers a media playlist of n segments of dur seconds at
// playlistURL, plus the bytes of each segment (and of the init segment for
// fMP4). Segment URLs are <dir>/<stem>_<i>.<ext>.
func (f *fakeFetcher) addMedia(playlistURL string, n int, dur float64, fmp4 bool) {
	dir := playlistURL[:strings.LastIndex(playlistURL, "/")+1]
	stem := strings.TrimSuffix(playlistURL[len(dir):], ".m3u8")
	ext := "ts"
	if fmp4 {
		ext = "m4s"
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:7\n#EXT-X-TARGETDURATION:6\n#EXT-X-PLAYLIST-TYPE:VOD\n")
	if fmp4 {
		fmt.Fprintf(&b, "#EXT-X-MAP:URI=\"%s_init.mp4\"\n", stem)
		f.set(dir+stem+"_init.mp4", "init:"+stem)
	}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s_%d.%s", stem, i, ext)
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n%s\n", dur, name)
		f.set(dir+name, fmt.Sprintf("%s:%d", stem, i))
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	f.set(playlistURL, b.String())
}

// addSubtitles registers a WebVTT playlist with one cue per segment.
func (f *fakeFetcher) addSubtitles(playlistURL string, n int, dur float64) {
	dir := playlistURL[:strings.LastIndex(playlistURL, "/")+1]
	stem := strings.TrimSuffix(playlistURL[len(dir):], ".m3u8")

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-TARGETDURATION:6\n")
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s_%d.vtt", stem, i)
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n%s\n", dur, name)
		start := float64(i) * dur
		f.set(dir+name, fmt.Sprintf("WEBVTT\n\n%s --> %s\nline %d\n",
			vttTime(start), vttTime(start+dur), i))
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	f.set(playlistURL, b.String())
}

func vttTime(sec float64) string {
	ms := int(sec * 1000)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

// newDemuxedFetcher serves demuxedMaster with 4 six-second segments per track.
func newDemuxedFetcher() *fakeFetcher {
	f := newFakeFetcher()
	f.set(base+"master.m3u8", demuxedMaster)
	f.addMedia(base+"video/low.m3u8", 4, 6, true)
	f.addMedia(base+"video/high.m3u8", 4, 6, true)
	f.addMedia(base+"audio/en.m3u8", 4, 6, true)
	f.addMedia(base+"audio/de.m3u8", 4, 6, true)
	f.addSubtitles(base+"subs/en.m3u8", 4, 6)
	f.addSubtitles(base+"subs/forced.m3u8", 1, 6)
	return f
}
