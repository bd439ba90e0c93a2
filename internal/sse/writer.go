package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"scholar-rank-go/internal/model"
)

// HeartbeatInterval 心跳间隔
const HeartbeatInterval = 15 * time.Second

// Writer 标注进度的SSE写入器
type Writer struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	mu        sync.Mutex
	state     *model.AnnotationState
	stopHeart chan struct{}
	stopOnce  sync.Once
}

// NewWriter 创建写入器并启动心跳
func NewWriter(w http.ResponseWriter, requestID string) (*Writer, error) {
	return NewWriterWithHeartbeat(w, requestID, HeartbeatInterval)
}

// NewWriterWithHeartbeat 指定心跳间隔
func NewWriterWithHeartbeat(w http.ResponseWriter, requestID string, interval time.Duration) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	state := model.NewAnnotationState()
	state.RequestID = requestID

	writer := &Writer{
		w:         w,
		flusher:   flusher,
		state:     state,
		stopHeart: make(chan struct{}),
	}

	go writer.heartbeat(interval)

	return writer, nil
}

// heartbeat 定期发送心跳保持连接
func (s *Writer) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			heartbeat := map[string]any{
				"status":         "heartbeat",
				"overall":        s.state.Overall,
				"current_action": s.state.CurrentAction,
			}
			data, _ := json.Marshal(heartbeat)
			fmt.Fprintf(s.w, "data: %s\n\n", data)
			s.flusher.Flush()
			s.mu.Unlock()
		case <-s.stopHeart:
			return
		}
	}
}

// StopHeartbeat 停止心跳，可重复调用
func (s *Writer) StopHeartbeat() {
	s.stopOnce.Do(func() {
		close(s.stopHeart)
	})
}

func (s *Writer) send() error {
	data, err := json.Marshal(s.state)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "data: %s\n\n", data)
	if err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Start 设置记录总数并发送初始状态
func (s *Writer) Start(total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Total = total
	s.state.CurrentAction = "Loading venue dataset..."
	return s.send()
}

// SetAction 更新当前动作和进度并发送
// 进度只增不减
func (s *Writer) SetAction(progress int, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if progress > s.state.Overall {
		s.state.Overall = progress
	}
	s.state.CurrentAction = action
	return s.send()
}

// SendAnnotation 发送一条记录的标注结果
func (s *Writer) SendAnnotation(ann model.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Done++
	s.state.Latest = &ann
	if s.state.Total > 0 {
		if overall := s.state.Done * 100 / s.state.Total; overall > s.state.Overall {
			s.state.Overall = min(overall, 99)
		}
	}
	s.state.CurrentAction = fmt.Sprintf("Annotated %d/%d", s.state.Done, s.state.Total)
	return s.send()
}

// SendError 发送全局错误
func (s *Writer) SendError(errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Status = "error"
	s.state.CurrentAction = "Annotation failed"
	s.state.Latest = nil
	s.state.Error = errMsg
	return s.send()
}

// Done 全部完成，附带所有标注结果
func (s *Writer) Done(annotations []model.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Status = "completed"
	s.state.Overall = 100
	s.state.CurrentAction = "Annotation completed"
	s.state.Latest = nil
	s.state.Annotations = annotations
	return s.send()
}
