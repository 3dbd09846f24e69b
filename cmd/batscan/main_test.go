package main

import (
	"strings"
	"testing"
)

func TestParseRunArgs(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		want    runArgs
		wantErr string
	}{
		{
			name: "空参数",
			args: nil,
			want: runArgs{},
		},
		{
			name: "只有 audio-root",
			args: []string{"/data/recordings"},
			want: runArgs{AudioRoot: "/data/recordings"},
		},
		{
			name: "全部参数（分离式）",
			args: []string{"/data", "--output-dir", "results", "--batch-size", "50"},
			want: runArgs{AudioRoot: "/data", OutputDir: "results", OutputDirSet: true, BatchSize: 50, BatchSizeSet: true},
		},
		{
			name: "全部参数（等号式）",
			args: []string{"--output-dir=results", "--batch-size=50", "/data"},
			want: runArgs{AudioRoot: "/data", OutputDir: "results", OutputDirSet: true, BatchSize: 50, BatchSizeSet: true},
		},
		{
			name:    "重复的 audio-root",
			args:    []string{"/a", "/b"},
			wantErr: "重复的 audio-root",
		},
		{
			name:    "batch-size 不是整数",
			args:    []string{"--batch-size=abc"},
			wantErr: "--batch-size 需要一个整数",
		},
		{
			name:    "batch-size 缺少值",
			args:    []string{"--batch-size"},
			wantErr: "--batch-size 需要一个值",
		},
		{
			name:    "output-dir 为空",
			args:    []string{"--output-dir="},
			wantErr: "--output-dir 不能为空",
		},
		{
			name:    "未知参数",
			args:    []string{"--what"},
			wantErr: "未知参数",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseRunArgs(tc.args)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("期望错误包含 %q，实际 %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("解析失败：%v", err)
			}
			if got != tc.want {
				t.Fatalf("解析结果不符合预期：\n got=%+v\nwant=%+v", got, tc.want)
			}
		})
	}
}
