/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transfer

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/konsulko/sota-agent/internal/model"
)

func testPackage() model.PackageID {
	return model.PackageID{Name: "demo-pkg", Version: "1.2.3"}
}

func TestWriteChunkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tr := New(testPackage(), "", dir)

	payload := base64.StdEncoding.EncodeToString([]byte("hello chunk"))
	require.True(t, tr.WriteChunk(0, payload))

	chunkPath := filepath.Join(dir, "downloads", testPackage().String(), "0")
	got, err := os.ReadFile(chunkPath)
	require.NoError(t, err)
	assert.Equal(t, "hello chunk", string(got))
}

func TestAssembleAscendingIndexOrder(t *testing.T) {
	dir := t.TempDir()
	tr := New(testPackage(), "", dir)

	require.True(t, tr.WriteChunk(2, base64.StdEncoding.EncodeToString([]byte("c"))))
	require.True(t, tr.WriteChunk(0, base64.StdEncoding.EncodeToString([]byte("a"))))
	require.True(t, tr.WriteChunk(1, base64.StdEncoding.EncodeToString([]byte("b"))))

	path, err := tr.Assemble()
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestAssembleFailsOnNonNumericChunkName(t *testing.T) {
	dir := t.TempDir()
	tr := New(testPackage(), "", dir)

	require.True(t, tr.WriteChunk(0, base64.StdEncoding.EncodeToString([]byte("a"))))

	chunkDir, err := tr.chunkDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(chunkDir, "not-a-number"), []byte("junk"), 0o644))

	_, err = tr.Assemble()
	assert.Error(t, err)
}

func TestVerifyChecksum(t *testing.T) {
	// sha1("test\n") = 4e1243bd22c66e76c2ba9eddc1f91394e57f9f83
	cases := []struct {
		name     string
		checksum string
		want     bool
	}{
		{"matches", "4e1243bd22c66e76c2ba9eddc1f91394e57f9f83", true},
		{"wrong digest", "fa7c4d75bae3a641d1f9ab5df028175bfb8a69ca", false},
		{"malformed digest", "invalid", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			tr := New(testPackage(), tc.checksum, dir)
			require.True(t, tr.WriteChunk(0, base64.StdEncoding.EncodeToString([]byte("test\n"))))
			_, err := tr.Assemble()
			require.NoError(t, err)

			ok, err := tr.VerifyChecksum()
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestDestroyRemovesChunkDirectory(t *testing.T) {
	dir := t.TempDir()
	tr := New(testPackage(), "", dir)
	require.True(t, tr.WriteChunk(0, base64.StdEncoding.EncodeToString([]byte("a"))))

	chunkDir, err := tr.chunkDir()
	require.NoError(t, err)
	require.NoError(t, tr.Destroy())

	_, statErr := os.Stat(chunkDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDestroyOnAbsentDirectoryIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	tr := New(testPackage(), "", dir)
	assert.NoError(t, tr.Destroy())
}

// Property: for any name/version pair, the package path is always rooted
// under storageDir/packages and named "{name}-{version}.spkg".
func TestProperty_PackagePathDerivation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir := t.TempDir()
		name := rapid.StringMatching(`[a-z][a-z0-9_-]{0,15}`).Draw(rt, "name")
		version := rapid.StringMatching(`[0-9]+\.[0-9]+\.[0-9]+`).Draw(rt, "version")

		tr := New(model.PackageID{Name: name, Version: version}, "", dir)
		path, err := tr.PackagePath()
		require.NoError(rt, err)

		want := filepath.Join(dir, "packages", name+"-"+version+".spkg")
		assert.Equal(rt, want, path)
	})
}
