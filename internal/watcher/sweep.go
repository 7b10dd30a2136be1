package watcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/panoptocord/panoptocord/internal/auth"
	"github.com/panoptocord/panoptocord/internal/discord"
	"github.com/panoptocord/panoptocord/internal/logging"
	"github.com/panoptocord/panoptocord/internal/panopto"
)

// Sweep 执行一轮完整轮询。任何目录拉取或公告失败都会使本轮失败，
// 水位线不推进；重试时可能重复公告，换取绝不漏报。
func (w *Watcher) Sweep(ctx context.Context) error {
	started := time.Now().UTC()
	sweepID := uuid.NewString()

	w.mu.Lock()
	w.stats.SweepsTotal++
	w.stats.LastSweepStarted = started
	w.mu.Unlock()

	if err := w.ensureToken(ctx); err != nil {
		w.recordFailure(err)
		return err
	}

	w.mu.Lock()
	token := w.st.AccessToken
	watermark := w.st.LastUpdated
	w.mu.Unlock()

	var counterMu sync.Mutex
	seen := 0
	announced := 0

	g, gctx := errgroup.WithContext(ctx)
	for _, folderID := range w.cfg.Watch.Folders {
		folderID := folderID
		g.Go(func() error {
			newSeen, newAnnounced, err := w.sweepFolder(gctx, folderID, token, watermark)
			counterMu.Lock()
			seen += newSeen
			announced += newAnnounced
			counterMu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		w.recordFailure(err)
		return err
	}

	w.mu.Lock()
	w.st.LastUpdated = started
	saveErr := w.store.Save(w.st)
	if saveErr != nil {
		w.stats.StateSaveFailures++
	}
	w.stats.SessionsSeen += uint64(seen)
	w.stats.SessionsAnnounced += uint64(announced)
	w.stats.LastSuccess = time.Now().UTC()
	w.stats.LastError = ""
	w.mu.Unlock()

	// 公告已发出，落盘失败只能记录；下一轮成功保存后水位线自然补上
	if saveErr != nil {
		w.logger.WithFields(logrus.Fields{
			"action":     "state_save",
			"state_path": w.cfg.Runtime.StatePath,
		}).Error(saveErr.Error())
	}

	w.logger.WithFields(logging.SweepFields(
		sweepID, w.cfg.Watch.FolderCount(), seen, announced, time.Since(started),
	)).Info("轮询完成")
	return nil
}

// sweepFolder 拉取单个目录并公告水位线之后的新会话，旧到新依次投递，
// 保证频道内的消息顺序与发布顺序一致。
func (w *Watcher) sweepFolder(ctx context.Context, folderID, token string, watermark time.Time) (seen, announced int, err error) {
	var list *panopto.SessionList
	err = w.policy.Do(ctx, func() error {
		var fetchErr error
		list, fetchErr = w.panopto.FolderSessions(ctx, folderID, token)
		return fetchErr
	}, panopto.Transient)
	if err != nil {
		return 0, 0, err
	}

	seen = len(list.Results)

	fresh := make([]panopto.Session, 0, len(list.Results))
	for _, sess := range list.Results {
		if sess.StartedAfter(watermark) {
			fresh = append(fresh, sess)
		}
	}
	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].StartTime.Before(*fresh[j].StartTime)
	})

	for _, sess := range fresh {
		if err := w.discord.PostRecording(ctx, w.recordingFor(sess)); err != nil {
			w.mu.Lock()
			w.stats.PublishFailures++
			w.mu.Unlock()
			return seen, announced, err
		}
		announced++
	}
	return seen, announced, nil
}

// ensureToken 在过期窗口内刷新访问 token；刷新失败会向 webhook 发告警，
// 告警本身失败只记日志，不能掩盖原始错误。
func (w *Watcher) ensureToken(ctx context.Context) error {
	w.mu.Lock()
	needs := auth.NeedsRefresh(w.st, time.Now())
	w.mu.Unlock()
	if !needs {
		return nil
	}

	w.mu.Lock()
	err := w.auth.Refresh(ctx, w.st)
	if err == nil {
		saveErr := w.store.Save(w.st)
		if saveErr != nil {
			w.stats.StateSaveFailures++
			w.mu.Unlock()
			w.logger.WithFields(logrus.Fields{
				"action":     "state_save",
				"state_path": w.cfg.Runtime.StatePath,
			}).Error(saveErr.Error())
			return nil
		}
		w.mu.Unlock()
		return nil
	}
	w.stats.TokenRefreshFailures++
	w.mu.Unlock()

	if alertErr := w.discord.PostMessage(ctx, refreshAlertMessage); alertErr != nil {
		w.logger.WithFields(logrus.Fields{"action": "refresh_alert"}).Error(alertErr.Error())
	}
	return fmt.Errorf("ensure access token: %w", err)
}

func (w *Watcher) recordingFor(sess panopto.Session) discord.Recording {
	start := time.Now().UTC()
	if sess.StartTime != nil {
		start = sess.StartTime.UTC()
	}

	w.mu.Lock()
	color, _ := w.st.FolderColor(sess.FolderDetails.Name, discord.RandomColor)
	w.mu.Unlock()

	return discord.Recording{
		Title:        sess.Name,
		Description:  sess.Description,
		ViewerURL:    sess.Urls.ViewerURL,
		ThumbnailURL: sess.Urls.ThumbnailURL,
		FolderName:   sess.FolderDetails.Name,
		FolderURL:    panopto.FolderListURL(w.cfg.Watch.PanoptoBase, sess.FolderDetails.ID),
		Color:        color,
		StartTime:    start,
		Duration:     sess.DurationValue(),
		SessionID:    sess.ID,
	}
}

func (w *Watcher) recordFailure(err error) {
	w.mu.Lock()
	w.stats.SweepsFailed++
	w.stats.LastError = err.Error()
	w.mu.Unlock()
}
