package transcript

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/Corphon/TubeDigest/internal/errors"
)

var videoIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID 从用户输入中提取视频ID。支持裸ID、watch?v=、youtu.be/、/shorts/、/embed/ 形式；
// 其他输入返回 InputError，不会发起任何网络请求。
func ParseVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", apperrors.NewInputError("video url is empty", nil)
	}
	if videoIDRegex.MatchString(input) {
		return input, nil
	}

	raw := input
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", apperrors.NewInputError("invalid video url", err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = firstSegment(u.Path)
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				id = firstSegment(strings.TrimPrefix(u.Path, prefix))
				break
			}
		}
	}

	if !videoIDRegex.MatchString(id) {
		return "", apperrors.NewInputError("could not find a video id in "+input, nil)
	}
	return id, nil
}

func firstSegment(p string) string {
	p = strings.Trim(p, "/")
	if i := strings.Index(p, "/"); i >= 0 {
		p = p[:i]
	}
	return p
}

// WatchURL 返回跳转到指定秒数的观看链接
func WatchURL(videoID string, seconds int) string {
	link := "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
	if seconds > 0 {
		link += "&t=" + strconv.Itoa(seconds) + "s"
	}
	return link
}
