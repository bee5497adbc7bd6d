package lineprotocol_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/martin2250/perfstream/pkg/lineprotocol"
)

func BenchmarkLineProtocol(b *testing.B) {
	for n := 0; n < b.N; n++ {
		lineprotocol.Parse("cpu,host=esx01,cpu=cpu0 busy=0.24,user=0.13,system=0.11 1600000000")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name  string
		point lineprotocol.Point
		want  string
	}{
		{
			name: "normal",
			point: lineprotocol.Point{
				Measurement: "cpu",
				Tags:        map[string]string{"host": "esx01", "cpu": "cpu0"},
				Fields:      map[string]float64{"user": 0.5, "busy": 1},
				Time:        1600000000,
			},
			want: "cpu,cpu=cpu0,host=esx01 busy=1,user=0.5 1600000000",
		},
		{
			name: "no tags",
			point: lineprotocol.Point{
				Measurement: "memory",
				Fields:      map[string]float64{"used": 1024},
				Time:        12,
			},
			want: "memory used=1024 12",
		},
		{
			name: "escaping",
			point: lineprotocol.Point{
				Measurement: "disk io,x",
				Tags:        map[string]string{"path": "/vmfs/my disk,a=b"},
				Fields:      map[string]float64{"read bytes": 3},
				Time:        1,
			},
			want: `disk\ io\,x,path=/vmfs/my\ disk\,a\=b read\ bytes=3 1`,
		},
		{
			name: "trailing backslash",
			point: lineprotocol.Point{
				Measurement: "disk",
				Tags:        map[string]string{"path": `C:\`},
				Fields:      map[string]float64{"busy": 1},
				Time:        5,
			},
			want: `disk,path=C:\\ busy=1 5`,
		},
		{
			name: "line breaks",
			point: lineprotocol.Point{
				Measurement: "vm",
				Tags:        map[string]string{"notes": "line 1\nline 2\r"},
				Fields:      map[string]float64{"up": 1},
				Time:        5,
			},
			want: `vm,notes=line\ 1\nline\ 2\r up=1 5`,
		},
		{
			name: "empty tag value",
			point: lineprotocol.Point{
				Measurement: "net",
				Tags:        map[string]string{"host": "a", "interface": ""},
				Fields:      map[string]float64{"bytes_recv": 1e21},
				Time:        5,
			},
			want: "net,host=a bytes_recv=1e+21 5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.point.String(); got != tt.want {
				t.Errorf("String() got = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	points := []lineprotocol.Point{
		{Measurement: "a", Fields: map[string]float64{"x": 1}, Time: 1},
		{Measurement: "b", Fields: map[string]float64{"y": 2}, Time: 2},
	}

	got := string(lineprotocol.Encode(points))
	want := "a x=1 1\nb y=2 2\n"

	if got != want {
		t.Errorf("Encode() got = %q, want %q", got, want)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    lineprotocol.Point
		wantErr bool
	}{
		{
			name: "normal",
			line: "cpu,host=esx01 busy=0.25,user=3i 3453453",
			want: lineprotocol.Point{
				Measurement: "cpu",
				Tags:        map[string]string{"host": "esx01"},
				Fields:      map[string]float64{"busy": 0.25, "user": 3},
				Time:        3453453,
			},
		},
		{
			name: "escaped",
			line: `disk\ io,path=/vmfs/my\ disk\,a\=b read\ bytes=3 1` + "\n",
			want: lineprotocol.Point{
				Measurement: "disk io",
				Tags:        map[string]string{"path": "/vmfs/my disk,a=b"},
				Fields:      map[string]float64{"read bytes": 3},
				Time:        1,
			},
		},
		{
			name:    "no fields",
			line:    "cpu,host=a 12",
			wantErr: true,
		},
		{
			name:    "string field",
			line:    `cpu value="abc" 12`,
			wantErr: true,
		},
		{
			name:    "empty tag",
			line:    "cpu,host= value=1 12",
			wantErr: true,
		},
		{
			name:    "bad time",
			line:    "cpu value=1 12x",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lineprotocol.Parse(tt.line)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() got = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseNoTime(t *testing.T) {
	p, err := lineprotocol.Parse("memory used=12")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if p.Time == 0 {
		t.Error("time should default to now")
	}
}

func TestParseString(t *testing.T) {
	p := lineprotocol.Point{
		Measurement: "net",
		Tags:        map[string]string{"host": "esx 01", "interface": "vmnic0"},
		Fields:      map[string]float64{"bytes_sent": 123456789, "err_in": 0.001},
		Time:        1700000000,
	}

	got, err := lineprotocol.Parse(p.String())
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Errorf("Parse(String()) got = %v, want %v", got, p)
	}
}

func TestParseStringBackslashes(t *testing.T) {
	for _, v := range []string{`C:\`, `C:\Windows`, `a\,b`, `\\server\share\`, `x\=`} {
		p := lineprotocol.Point{
			Measurement: `disk\`,
			Tags:        map[string]string{"path": v, `key\`: "a"},
			Fields:      map[string]float64{`busy\`: 1},
			Time:        1,
		}

		line := p.String()
		got, err := lineprotocol.Parse(line)
		if err != nil {
			t.Errorf("%s: error: %v", line, err)
			continue
		}
		if !reflect.DeepEqual(got, p) {
			t.Errorf("Parse(%s) got = %v, want %v", line, got, p)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := lineprotocol.Point{Measurement: "a", Fields: map[string]float64{"x": 1}}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid point: %v", err)
	}

	empty := lineprotocol.Point{Measurement: "a"}
	if err := empty.Validate(); err != lineprotocol.ErrNoFields {
		t.Errorf("point without fields: %v", err)
	}

	nan := lineprotocol.Point{Measurement: "a", Fields: map[string]float64{"x": math.NaN()}}
	if err := nan.Validate(); err == nil {
		t.Error("NaN field should be invalid")
	}
}
