package sdk

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxSSELine = 1 << 20

// Stream 订阅任务的 SSE 流，每个事件调用一次 fn。
// 返回最后收到的事件：服务端在终态事件后关闭连接，也可能在任务长时间未开始时提前结束，
// 调用方通过 last.Type.IsTerminal() 区分。fn 返回错误时立即停止。
func (c *Client) Stream(ctx context.Context, taskID string, fn func(Event) error) (last Event, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+taskPath(taskID, "stream"), nil)
	if err != nil {
		return last, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.StreamClient.Do(req)
	if err != nil {
		return last, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return last, err
	}

	err = readEvents(resp.Body, func(ev Event) error {
		last = ev
		return fn(ev)
	})
	return last, err
}

// readEvents 解析 text/event-stream：event/data 字段冒号后的空格可有可无，
// 多行 data 以换行拼接，空行分发一个事件。注释行与未知事件忽略。
func readEvents(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxSSELine)

	var (
		name string
		data bytes.Buffer
	)
	dispatch := func() error {
		defer func() {
			name = ""
			data.Reset()
		}()
		if name == "" && data.Len() == 0 {
			return nil
		}
		if !EventType(name).known() {
			return nil
		}
		ev, err := decodeEvent(name, data.Bytes())
		if err != nil {
			return err
		}
		return fn(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	// 连接关闭前未以空行结尾的事件
	return dispatch()
}
