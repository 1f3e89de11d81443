// Package metrics 提供镜像过程的 Prometheus 计数器，可导出为 node_exporter textfile
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Mirror 汇总一次镜像运行的计数器。nil *Mirror 的所有方法均为空操作
type Mirror struct {
	registry *prometheus.Registry
	files    *prometheus.CounterVec
	bytes    prometheus.Counter
	folders  prometheus.Counter
	failures *prometheus.CounterVec
}

// Summary 是计数器的快照
type Summary struct {
	Downloaded int64
	Skipped    int64
	Raced      int64
	Folders    int64
	Failures   int64
	Bytes      int64
}

// NewMirror 创建独立 registry 下的计数器
func NewMirror() *Mirror {
	m := &Mirror{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbxmirror",
			Name:      "files_total",
			Help:      "Files visited by the mirror, by outcome.",
		}, []string{"outcome"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dbxmirror",
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written to the download directory.",
		}),
		folders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dbxmirror",
			Name:      "folders_listed_total",
			Help:      "Remote folders listed.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbxmirror",
			Name:      "failures_total",
			Help:      "Failed mirror tasks, by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.files, m.bytes, m.folders, m.failures)
	return m
}

// Registry 返回底层 registry
func (m *Mirror) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FileDone 记录一个文件的处理结果，downloaded 为实际写入的字节数
func (m *Mirror) FileDone(outcome string, written int64) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(outcome).Inc()
	if written > 0 {
		m.bytes.Add(float64(written))
	}
}

// FolderListed 记录一次目录列举
func (m *Mirror) FolderListed() {
	if m == nil {
		return
	}
	m.folders.Inc()
}

// Failure 记录一次失败
func (m *Mirror) Failure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// Summary 读取当前计数
func (m *Mirror) Summary() Summary {
	if m == nil {
		return Summary{}
	}
	s := Summary{
		Downloaded: value(m.files.WithLabelValues("downloaded")),
		Skipped:    value(m.files.WithLabelValues("skipped")),
		Raced:      value(m.files.WithLabelValues("raced")) + value(m.files.WithLabelValues("shared")),
		Folders:    value(m.folders),
		Bytes:      value(m.bytes),
	}
	for _, kind := range []string{"download", "local_write", "unexpected_entry", "list", "other"} {
		s.Failures += value(m.failures.WithLabelValues(kind))
	}
	return s
}

// WriteTextfile 以 Prometheus 文本格式写入 path
func (m *Mirror) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func value(c prometheus.Counter) int64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		return 0
	}
	return int64(pb.GetCounter().GetValue())
}
