package profile

// Null is the sentinel used by every nullable index column.
const Null int32 = -1

// StackTable holds prefix-linked call chains. A stack's Prefix, when not
// Null, is always smaller than the stack's own index.
type StackTable struct {
	Frame       []int32
	Prefix      []int32
	Category    []int32
	Subcategory []int32
}

func (t *StackTable) Len() int { return len(t.Frame) }

// Append adds a stack and returns its index.
func (t *StackTable) Append(frame, prefix, category, subcategory int32) int32 {
	i := int32(len(t.Frame))
	t.Frame = append(t.Frame, frame)
	t.Prefix = append(t.Prefix, prefix)
	t.Category = append(t.Category, category)
	t.Subcategory = append(t.Subcategory, subcategory)
	return i
}

// FrameTable describes observed invocation contexts. Category and
// Subcategory are nullable: Null means the frame inherits the category of
// its parent stack.
type FrameTable struct {
	Func         []int32
	Category     []int32
	Subcategory  []int32
	InlineDepth  []int32
	NativeSymbol []int32
	Address      []int64
	Line         []int32
}

func (t *FrameTable) Len() int { return len(t.Func) }

// Append adds a non-inlined frame without category information.
func (t *FrameTable) Append(fn int32) int32 {
	return t.AppendFrame(Frame{Func: fn, Category: Null, Subcategory: Null, NativeSymbol: Null, Line: Null})
}

// Frame is a row of the FrameTable.
type Frame struct {
	Func         int32
	Category     int32
	Subcategory  int32
	InlineDepth  int32
	NativeSymbol int32
	Address      int64
	Line         int32
}

func (t *FrameTable) AppendFrame(f Frame) int32 {
	i := int32(len(t.Func))
	t.Func = append(t.Func, f.Func)
	t.Category = append(t.Category, f.Category)
	t.Subcategory = append(t.Subcategory, f.Subcategory)
	t.InlineDepth = append(t.InlineDepth, f.InlineDepth)
	t.NativeSymbol = append(t.NativeSymbol, f.NativeSymbol)
	t.Address = append(t.Address, f.Address)
	t.Line = append(t.Line, f.Line)
	return i
}

// FuncTable holds function identities. Name, Resource and FileName are
// indexes into the string table and the resource table respectively.
type FuncTable struct {
	Name          []int32
	Resource      []int32
	FileName      []int32
	LineNumber    []int32
	IsJS          []bool
	RelevantForJS []bool
}

func (t *FuncTable) Len() int { return len(t.Name) }

// Func is a row of the FuncTable.
type Func struct {
	Name          int32
	Resource      int32
	FileName      int32
	LineNumber    int32
	IsJS          bool
	RelevantForJS bool
}

func (t *FuncTable) AppendFunc(f Func) int32 {
	i := int32(len(t.Name))
	t.Name = append(t.Name, f.Name)
	t.Resource = append(t.Resource, f.Resource)
	t.FileName = append(t.FileName, f.FileName)
	t.LineNumber = append(t.LineNumber, f.LineNumber)
	t.IsJS = append(t.IsJS, f.IsJS)
	t.RelevantForJS = append(t.RelevantForJS, f.RelevantForJS)
	return i
}

type ResourceType int32

const (
	ResourceTypeUnknown ResourceType = iota
	ResourceTypeLibrary
	ResourceTypeAddon
	ResourceTypeWebhost
	ResourceTypeOtherhost
	ResourceTypeURL
)

type ResourceTable struct {
	Name []int32
	Type []ResourceType
}

func (t *ResourceTable) Len() int { return len(t.Name) }

func (t *ResourceTable) Append(name int32, typ ResourceType) int32 {
	i := int32(len(t.Name))
	t.Name = append(t.Name, name)
	t.Type = append(t.Type, typ)
	return i
}

type NativeSymbolTable struct {
	Name []int32
}

func (t *NativeSymbolTable) Len() int { return len(t.Name) }

func (t *NativeSymbolTable) Append(name int32) int32 {
	i := int32(len(t.Name))
	t.Name = append(t.Name, name)
	return i
}
