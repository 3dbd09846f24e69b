package domain

// AudioFile 描述一次扫描得到的录音文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - Name 是含扩展名的文件名，作为去重用的文件标识
//
// 已知约束：文件标识只看 base name。同一单元内不同子目录下的同名文件
// 会被视为同一份工作（与既有产出数据兼容的刻意取舍，不在此层“修正”）。
type AudioFile struct {
	AbsPath string
	RelPath string
	Name    string // 含扩展名，例如 "20230601_214500.wav"
	Dir     string // 父目录绝对路径
	Size    int64
	ModUnix int64
}

// WorkUnit 是按录音子目录聚合的工作单元（一个 plot 一个单元）。
// ID 取父目录的 base name；为了数据局部性只保存文件下标（指向 []AudioFile）。
//
// 同样的 base-name 约束适用于单元：不同子树下同名目录会聚合为同一单元。
type WorkUnit struct {
	ID      string
	FileIdx []int
}
